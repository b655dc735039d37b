package whatsapp

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultGraphURL = "https://graph.facebook.com/v21.0"

// InboundMessage is one text a WhatsApp user sent to a business number.
type InboundMessage struct {
	PhoneNumberID string
	From          string
	ProfileName   string
	MessageID     string
	Text          string
	Image         string
	Timestamp     time.Time
}

// StatusUpdate is a delivery receipt for a message this service sent.
type StatusUpdate struct {
	PhoneNumberID string
	MessageID     string
	RecipientID   string
	Status        entity.MessageStatus
	Timestamp     time.Time
}

// Listener receives parsed webhook events.
type Listener interface {
	OnInbound(ctx context.Context, msg InboundMessage)
	OnStatus(ctx context.Context, status StatusUpdate)
}

// Bridge talks to the WhatsApp Business Graph API on behalf of any agent;
// per-agent credentials travel with each call.
type Bridge struct {
	log         *slog.Logger
	graphURL    string
	verifyToken string
	appSecret   string
	httpClient  *http.Client
	listener    Listener
}

// WebhookPayload represents the incoming webhook payload from WhatsApp
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text,omitempty"`
					Image *struct {
						ID      string `json:"id"`
						Caption string `json:"caption"`
					} `json:"image,omitempty"`
				} `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					Timestamp   string `json:"timestamp"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Image            *imageBody    `json:"image,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type imageBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type templateBody struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func NewBridge(graphURL, verifyToken, appSecret string, log *slog.Logger) *Bridge {
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	return &Bridge{
		log:         log.With(sl.Module("whatsapp")),
		graphURL:    strings.TrimRight(graphURL, "/"),
		verifyToken: verifyToken,
		appSecret:   appSecret,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *Bridge) SetListener(listener Listener) {
	b.listener = listener
}

// Send dispatches one message and returns the Graph message id.
func (b *Bridge) Send(ctx context.Context, creds entity.WhatsAppConfig, req entity.SendRequest) (string, error) {
	if creds.PhoneNumberID == "" || creds.AccessToken == "" {
		return "", entity.ErrNotReady
	}

	body := sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               req.PhoneNumber,
		Type:             req.MessageType,
	}
	switch req.MessageType {
	case entity.MessageTypeText:
		body.Text = &textBody{Body: req.Message}
	case entity.MessageTypeImage:
		body.Image = &imageBody{Link: req.ImageURL, Caption: req.Caption}
	case entity.MessageTypeTemplate:
		t := &templateBody{Name: req.TemplateName}
		t.Language.Code = req.TemplateLanguage
		if t.Language.Code == "" {
			t.Language.Code = "en_US"
		}
		body.Template = t
	default:
		return "", fmt.Errorf("%w: unsupported message type %q", entity.ErrValidation, req.MessageType)
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", b.graphURL, creds.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", fmt.Errorf("API returned no message id")
	}

	b.log.Info("message sent",
		slog.String("recipient_phone", req.PhoneNumber),
		slog.String("type", req.MessageType),
		slog.String("message_id", out.Messages[0].ID),
	)
	return out.Messages[0].ID, nil
}

// HandleWebhookVerification handles the GET request for webhook verification
func (b *Bridge) HandleWebhookVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && b.verifyToken != "" && token == b.verifyToken {
		b.log.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	b.log.Warn("webhook verification failed",
		slog.String("mode", mode),
		slog.Bool("token_match", token == b.verifyToken),
	)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleWebhook acknowledges the delivery and hands parsed events to the
// listener in the background.
func (b *Bridge) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		b.log.Error("failed to read request body", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if b.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !b.verifySignature(body, signature) {
			b.log.Warn("invalid webhook signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		b.log.Error("failed to parse webhook payload", sl.Err(err))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	if b.listener == nil {
		return
	}
	inbound, statuses := ParsePayload(payload)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, msg := range inbound {
			b.listener.OnInbound(ctx, msg)
		}
		for _, st := range statuses {
			b.listener.OnStatus(ctx, st)
		}
	}()
}

// ParsePayload flattens a webhook payload into inbound messages and
// delivery statuses. Non-message changes are ignored.
func ParsePayload(payload WebhookPayload) ([]InboundMessage, []StatusUpdate) {
	if payload.Object != "whatsapp_business_account" {
		return nil, nil
	}

	var inbound []InboundMessage
	var statuses []StatusUpdate
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			value := change.Value
			names := make(map[string]string, len(value.Contacts))
			for _, c := range value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, m := range value.Messages {
				msg := InboundMessage{
					PhoneNumberID: value.Metadata.PhoneNumberID,
					From:          m.From,
					ProfileName:   names[m.From],
					MessageID:     m.ID,
					Timestamp:     unixString(m.Timestamp),
				}
				switch {
				case m.Type == "text" && m.Text != nil && m.Text.Body != "":
					msg.Text = m.Text.Body
				case m.Type == "image" && m.Image != nil:
					msg.Text = m.Image.Caption
					msg.Image = m.Image.ID
				default:
					continue
				}
				inbound = append(inbound, msg)
			}

			for _, s := range value.Statuses {
				status, ok := statusMap[s.Status]
				if !ok {
					continue
				}
				statuses = append(statuses, StatusUpdate{
					PhoneNumberID: value.Metadata.PhoneNumberID,
					MessageID:     s.ID,
					RecipientID:   s.RecipientID,
					Status:        status,
					Timestamp:     unixString(s.Timestamp),
				})
			}
		}
	}
	return inbound, statuses
}

var statusMap = map[string]entity.MessageStatus{
	"sent":      entity.StatusSent,
	"delivered": entity.StatusDelivered,
	"read":      entity.StatusRead,
	"failed":    entity.StatusError,
}

func unixString(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs == 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// verifySignature verifies the X-Hub-Signature-256 header
func (b *Bridge) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Signature format: "sha256=<hex_signature>"
	if len(signature) < 8 || signature[:7] != "sha256=" {
		return false
	}

	expectedSig := signature[7:]
	mac := hmac.New(sha256.New, []byte(b.appSecret))
	mac.Write(body)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}
