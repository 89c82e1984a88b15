package util

import (
	"io"
	"os"
	"strings"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ReadYAMLInto reads data for the given io.ReadCloser - until it hits an error
// or reaches EOF - and attempts to unmarshal the data read into the given
// interface.
func ReadYAMLInto(r io.ReadCloser, data any) error {
	defer r.Close()
	bytes, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading YAML")
	}
	return errors.Wrap(UnmarshalYAMLStrictWithFallback(bytes, data), "unmarshalling YAML")
}

// UnmarshalYAMLStrictWithFallback unmarshals strictly, falling back to a
// lenient unmarshal when the input only has unknown keys. Duplicated keys
// are always an error.
func UnmarshalYAMLStrictWithFallback(in []byte, out any) error {
	strictErr := yaml.UnmarshalStrict(in, out)
	if strictErr == nil {
		return nil
	}
	if strings.Contains(strictErr.Error(), "already defined") {
		return strictErr
	}

	if err := yaml.Unmarshal(in, out); err != nil {
		return err
	}
	grip.Warning(message.WrapError(strictErr, message.Fields{
		"message": "YAML has keys that are not recognized",
	}))

	return nil
}

// ReadFromYAMLFile unmarshals the YAML file into data.
func ReadFromYAMLFile(fn string, data any) error {
	if _, err := os.Stat(fn); os.IsNotExist(err) {
		return errors.Errorf("file '%s' does not exist", fn)
	}

	file, err := os.Open(fn)
	if err != nil {
		return errors.Wrapf(err, "opening file '%s'", fn)
	}

	return errors.Wrapf(ReadYAMLInto(file, data), "reading file '%s'", fn)
}

// WriteYAMLFile marshals data as YAML into the file.
func WriteYAMLFile(fn string, data any) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshalling YAML")
	}

	return errors.Wrapf(os.WriteFile(fn, out, 0644), "writing file '%s'", fn)
}
