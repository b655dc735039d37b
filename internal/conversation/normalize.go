package conversation

import (
	"AgentDesk/entity"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Legacy field-name variants, checked in this order.
var (
	userIDFields    = []string{"user_id", "userId", "userID", "from", "wa_id", "sender_id"}
	phoneIDFields   = []string{"phone_number_id", "phoneNumberId", "phone_id"}
	sessionIDFields = []string{"session_id", "sessionId"}
	datetimeFields  = []string{"datetime", "timestamp", "created_at"}
	idFields        = []string{"_id", "id", "message_id"}
)

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

const unknown = "unknown"

// Usable reports whether an identifier can take part in a group key.
func Usable(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, unknown)
}

// Normalize folds one raw conversation-store row into the canonical Document.
func Normalize(raw map[string]interface{}) entity.Document {
	return entity.Document{
		ID:            pick(raw, idFields),
		AgentName:     str(raw["agent_name"]),
		UserID:        pick(raw, userIDFields),
		PhoneNumberID: pick(raw, phoneIDFields),
		SessionID:     pick(raw, sessionIDFields),
		HumanText:     str(raw[entity.FieldHumanText]),
		AIText:        str(raw[entity.FieldAIText]),
		Text:          str(raw[entity.FieldText]),
		Type:          strings.ToLower(str(raw["type"])),
		Image:         str(raw["image"]),
		Sender:        str(raw["sender"]),
		Datetime:      pickTime(raw),
	}
}

func NormalizeAll(raw []map[string]interface{}) []entity.Document {
	docs := make([]entity.Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, Normalize(r))
	}
	return docs
}

// pick returns the first usable value among fields, falling back to the
// first non-empty one so a literal "unknown" survives to be filtered later.
func pick(raw map[string]interface{}, fields []string) string {
	fallback := ""
	for _, f := range fields {
		v := strings.TrimSpace(str(raw[f]))
		if Usable(v) {
			return v
		}
		if v != "" && fallback == "" {
			fallback = v
		}
	}
	return fallback
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case primitive.ObjectID:
		return t.Hex()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func pickTime(raw map[string]interface{}) time.Time {
	for _, f := range datetimeFields {
		if t, ok := parseTime(raw[f]); ok {
			return t
		}
	}
	return time.Time{}
}

func parseTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case primitive.DateTime:
		return t.Time().UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case int32:
		return time.Unix(int64(t), 0).UTC(), true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range datetimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// DatetimeLayout is fixed width so stored datetimes sort as strings.
const DatetimeLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(DatetimeLayout)
}
