package reconcile

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/tablescout/review-pipeline/internal/model"
)

// WriteArtifact writes the transfer artifact as indented JSON so it stays
// hand-editable between export and apply.
func WriteArtifact(path string, records []model.RewriteRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "reconcile: marshal artifact")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "reconcile: write artifact %s", path)
	}
	return nil
}

// ReadArtifact loads a transfer artifact. Unknown fields are rejected so a
// mangled edit fails loudly instead of silently dropping rewrites.
func ReadArtifact(path string) ([]model.RewriteRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read artifact %s", path)
	}
	var records []model.RewriteRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&records); err != nil {
		return nil, eris.Wrapf(err, "reconcile: parse artifact %s", path)
	}
	return records, nil
}
