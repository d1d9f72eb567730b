// Package push carries live layer updates between processes.
//
// The record server fans every saved record out to Server-Sent Events
// clients through a [Hub]; a [Subscriber] on the other side decodes the
// frames into [Update] values and hands them to the sync engine. Updates are
// untrusted input: the layer tag is validated by the consumer, not here.
package push

import (
	"encoding/json"
	"strings"

	errs "github.com/matzehuels/dagplanner/pkg/errors"
)

// Update instructs a session to replace one layer with new Mermaid text.
type Update struct {
	Layer         string `json:"layer"`
	MermaidSource string `json:"mermaidSource"`
	Source        string `json:"source,omitempty"`
}

// Decode parses one update frame. Only the JSON shape is checked.
func Decode(data []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return Update{}, errs.Wrap(errs.ErrCodeMalformedPush, err, "decode push update")
	}
	u.Layer = strings.TrimSpace(u.Layer)
	return u, nil
}
