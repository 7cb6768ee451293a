package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// readBatch loads a batch file. YAML files (.yaml, .yml) are converted to the
// JSON envelope the queue carries. Dates must be quoted strings in
// DateLayout.
func readBatch(path string) (*models.BatchEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", models.ErrBatchInput, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrBatchInput, err)
		}
	}
	return models.DecodeBatch(data)
}
