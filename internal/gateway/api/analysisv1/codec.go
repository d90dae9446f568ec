package analysisv1

import (
	"encoding/json"

	"connectrpc.com/connect"

	"archaeologist/internal/util/jsonutil"
)

// jsonCodec serializes plain Go structs with encoding/json. Messages of this
// service are not protobuf types, so connect's built-in JSON codec cannot be
// used. Markup characters in source code are left unescaped.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return jsonutil.MarshalNoEscape(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// WithJSON is the codec option handlers and clients of this service need.
func WithJSON() connect.Option { return connect.WithCodec(jsonCodec{}) }
