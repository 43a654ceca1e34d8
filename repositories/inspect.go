package repositories

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Describe decodes a raw Badger entry into a record kind and a one-line
// summary. It serves the inspection tools, never the request path.
func Describe(key string, val []byte) (kind, detail string) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var record diskMessage
		if err := unmarshal(val, &record); err != nil {
			return "MESSAGE", "undecodable: " + err.Error()
		}
		return "MESSAGE", fmt.Sprintf("%s: %q (%d attachments)", record.SenderID, record.Text, len(record.Attachments))
	case strings.HasPrefix(key, "msgid:"):
		return "MESSAGE_INDEX", string(val)
	case strings.HasPrefix(key, "msgclock:"):
		if len(val) != 8 {
			return "CLOCK", "corrupt"
		}
		return "CLOCK", time.Unix(0, int64(binary.BigEndian.Uint64(val))).UTC().Format(time.RFC3339Nano)
	case strings.HasPrefix(key, channelPrefix):
		var record diskChannel
		if err := unmarshal(val, &record); err != nil {
			return "CHANNEL", "undecodable: " + err.Error()
		}
		return "CHANNEL", fmt.Sprintf("#%s by %s, %d members", record.Name, record.CreatedBy, len(record.Members))
	case strings.HasPrefix(key, "channelname:"), strings.HasPrefix(key, "username:"):
		return "NAME_INDEX", string(val)
	case strings.HasPrefix(key, "user:"):
		var record diskUser
		if err := unmarshal(val, &record); err != nil {
			return "USER", "undecodable: " + err.Error()
		}
		return "USER", fmt.Sprintf("@%s (%s)", record.Username, record.DisplayName)
	default:
		return "RAW", fmt.Sprintf("Size: %d bytes", len(val))
	}
}
