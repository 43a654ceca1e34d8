package internal

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"team-chat/repositories"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const inspectLimit = 500

var inspectTemplate = template.Must(template.New("inspect").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>inspect {{.Prefix}}</title>
<style>body{font-family:monospace}td,th{padding:2px 8px;text-align:left}</style></head>
<body>
<form><input name="prefix" value="{{.Prefix}}"> <button>scan</button></form>
<p>{{len .Items}} keys{{if .Truncated}} (truncated){{end}}</p>
<table>
<tr><th>Key</th><th>Type</th><th>Timestamp</th><th>Entity</th><th>Namespace</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Type}}</td><td>{{.Timestamp}}</td><td>{{.EntityID}}</td><td>{{.Namespace}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
</body></html>`))

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

type PageData struct {
	Prefix    string
	Items     []InspectRow
	Truncated bool
}

// Scan reads at most limit entries under prefix.
func Scan(db *badger.DB, prefix string, limit int, mapper RowMapper) (PageData, error) {
	if mapper == nil {
		mapper = DefaultMapper
	}
	data := PageData{Prefix: prefix}
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if len(data.Items) == limit {
				data.Truncated = true
				return nil
			}
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				data.Items = append(data.Items, mapper(string(item.Key()), val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return data, err
}

// InspectHandler renders the keys under ?prefix= as an HTML table.
// It is only mounted when DEBUG_INSPECT is set.
func InspectHandler(db *badger.DB, mapper RowMapper) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}
		data, err := Scan(db, prefix, inspectLimit, mapper)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	})
}

// DefaultMapper understands "msg:{channel}:{timestamp}:{id}" keys and
// decodes the records it knows.
func DefaultMapper(key string, val []byte) InspectRow {
	kind, detail := repositories.Describe(key, val)
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      kind,
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: parts[0],
		Detail:    detail,
	}

	if len(parts) >= 4 {
		row.Namespace = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("2006-01-02 15:04:05.000")
		}
		row.EntityID = parts[3]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	} else if len(parts) == 2 {
		row.EntityID = parts[1]
	}
	return row
}
