package pkgjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

var errNotObject = errors.New("expected a JSON object")

// RewriteConsumerBinEntry points bin.node of the manifest at path to executable.
// Key order and every other field are preserved. The file is replaced atomically.
func RewriteConsumerBinEntry(path, executable string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat consumer manifest: %w", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read consumer manifest: %w", err)
	}

	var manifest object
	if err = json.Unmarshal(contents, &manifest); err != nil {
		return fmt.Errorf("decode consumer manifest: %w", err)
	}

	var bin object

	raw, ok := manifest.get("bin")
	if !ok || json.Unmarshal(raw, &bin) != nil {
		bin = nil
	}

	node, err := json.Marshal(executable)
	if err != nil {
		return err
	}

	bin.set("node", node)

	binJSON, err := json.Marshal(bin)
	if err != nil {
		return err
	}

	manifest.set("bin", binJSON)

	data, err := Marshal(manifest)
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: info.Mode().Perm(),
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("replace consumer manifest: %w", err)
	}

	return nil
}

// member is one key of an object, with its value kept verbatim.
type member struct {
	key   string
	value json.RawMessage
}

// object is a JSON object that remembers key order.
type object []member

func (o object) get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.key == key {
			return m.value, true
		}
	}

	return nil, false
}

func (o *object) set(key string, value json.RawMessage) {
	for i := range *o {
		if (*o)[i].key == key {
			(*o)[i].value = value
			return
		}
	}

	*o = append(*o, member{key: key, value: value})
}

func (o *object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}

	var members object

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}

		key, ok := tok.(string)
		if !ok {
			return errNotObject
		}

		var value json.RawMessage
		if err = dec.Decode(&value); err != nil {
			return err
		}

		members = append(members, member{key: key, value: value})
	}

	if _, err = dec.Token(); err != nil {
		return err
	}

	*o = members

	return nil
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(m.value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
