package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeYAML = "application/yaml"
)

var ErrUnknownContentType = errors.New("unknown-content-type")

type marshaler func(w io.Writer, typed interface{}) error
type unmarshaler func(body io.Reader, typed interface{}) error

var (
	json_marshaler = func(w io.Writer, typed interface{}) error {
		return json.NewEncoder(w).Encode(typed)
	}

	// Numbers stay json.Number so integers too large for a float64 are refused
	// by the codec rather than rounded here.
	json_unmarshaler = func(body io.Reader, typed interface{}) error {
		dec := json.NewDecoder(body)
		dec.UseNumber()
		return dec.Decode(typed)
	}

	yaml_marshaler = func(w io.Writer, typed interface{}) error {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(typed); err != nil {
			return err
		}
		return enc.Close()
	}

	yaml_unmarshaler = func(body io.Reader, typed interface{}) error {
		return yaml.NewDecoder(body).Decode(typed)
	}

	marshalers = map[string]marshaler{
		ContentTypeJSON:      json_marshaler,
		ContentTypeYAML:      yaml_marshaler,
		"application/x-yaml": yaml_marshaler,
		"text/yaml":          yaml_marshaler,
	}

	unmarshalers = map[string]unmarshaler{
		ContentTypeJSON:      json_unmarshaler,
		ContentTypeYAML:      yaml_unmarshaler,
		"application/x-yaml": yaml_unmarshaler,
		"text/yaml":          yaml_unmarshaler,
	}
)

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return t
}

// responseType picks the first acceptable type from the Accept header that
// has a marshaler, defaulting to json.
func responseType(req *http.Request) string {
	for _, part := range strings.Split(req.Header.Get("Accept"), ",") {
		if t := mediaType(strings.TrimSpace(part)); t != "" {
			if _, has := marshalers[t]; has {
				return t
			}
		}
	}
	return ContentTypeJSON
}

func marshal(resp http.ResponseWriter, req *http.Request, code int, value interface{}) {
	contentType := responseType(req)
	resp.Header().Set("Content-Type", contentType)
	resp.WriteHeader(code)
	if err := marshalers[contentType](resp, value); err != nil {
		glog.Warningln("api-marshal:", "content-type=", contentType, "err=", err)
	}
}

// unmarshal decodes the request body by its Content-Type.  No Content-Type
// means json.
func unmarshal(req *http.Request, value interface{}) error {
	contentType := mediaType(req.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = ContentTypeJSON
	}
	um, has := unmarshalers[contentType]
	if !has {
		return ErrUnknownContentType
	}
	return um(req.Body, value)
}
