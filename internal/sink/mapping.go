package sink

import (
	"encoding/json"
	"time"
)

// indexMappings is the document schema of a log index. data is kept in
// _source only since its shape varies per producer.
var indexMappings = map[string]interface{}{
	"properties": map[string]interface{}{
		"id":        map[string]interface{}{"type": "keyword"},
		"service":   map[string]interface{}{"type": "keyword"},
		"action":    map[string]interface{}{"type": "keyword"},
		"timestamp": map[string]interface{}{"type": "date"},
		"level":     map[string]interface{}{"type": "keyword"},
		"data":      map[string]interface{}{"type": "object", "enabled": false},
		"message":   map[string]interface{}{"type": "text"},
	},
}

// IndexBody is the create-index request body
func IndexBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{"mappings": indexMappings})
	return body
}

// IndexTemplateBody is the composable template applied to every daily index
func IndexTemplateBody(prefix string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"index_patterns": []string{prefix + "-*"},
		"template": map[string]interface{}{
			"mappings": indexMappings,
		},
	})
	return body
}

// IndexName returns the index a record timestamped t is written to
func IndexName(prefix string, datePartitioned bool, t time.Time) string {
	if !datePartitioned {
		return prefix
	}
	return prefix + "-" + t.UTC().Format("2006-01-02")
}

// IndexPattern returns the index expression searches run against
func IndexPattern(prefix string, datePartitioned bool) string {
	if !datePartitioned {
		return prefix
	}
	return prefix + "-*"
}
