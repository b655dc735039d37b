package response

// Response is the envelope of every API reply.
type Response struct {
	Ok    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func Ok(data interface{}) Response {
	return Response{
		Ok:   true,
		Data: data,
	}
}

func Error(msg string) Response {
	return Response{
		Ok:    false,
		Error: msg,
	}
}
