package pool

import (
	"fmt"
	"strings"

	"github.com/mandelsoft/concerns/pkg/model"
)

// DecodeKey decodes a work queue key. Command keys use the format
// cmd:<command>, object keys obj:<kind>/<id>.
func DecodeKey(key string) (Command, *model.ObjectId, error) {
	i := strings.Index(key, ":")

	if i < 0 {
		return Command(key), nil, nil
	}

	main := key[:i]
	switch main {
	case "cmd":
		return Command(key[i+1:]), nil, nil
	case "obj":
		id, err := model.ParseObjectId(key[i+1:])
		if err != nil {
			return "", nil, fmt.Errorf("error decoding '%s': %w", key, err)
		}
		return "", &id, nil
	}
	return "", nil, fmt.Errorf("unexpected key format: %q", key)
}

func EncodeCommandKey(cmd Command) string {
	return fmt.Sprintf("cmd:%s", cmd)
}

func EncodeObjectKey(id model.ObjectId) string {
	return fmt.Sprintf("obj:%s", id)
}
