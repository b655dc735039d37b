package main

import "AgentDesk/cmd/inbox/cli"

func main() {
	cli.Execute()
}
