// Package config provides configuration types, defaults, and persistence for courier.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/courier-mq/courier/queue"
)

// SaveQueue updates the queue section in the config file. Comments and
// formatting in other sections are preserved by editing the yaml.Node
// tree instead of re-marshalling the whole config.
func SaveQueue(configPath string, qc queue.Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	queueNode := buildQueueNode(qc)

	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "queue"},
						queueNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind == yaml.MappingNode {
			// Find and replace the queue key, or append it
			found := false
			for i := 0; i < len(root.Content)-1; i += 2 {
				if root.Content[i].Value == "queue" {
					root.Content[i+1] = queueNode
					found = true
					break
				}
			}
			if !found {
				root.Content = append(root.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: "queue"},
					queueNode,
				)
			}
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return writeAtomic(configPath, buf.Bytes())
}

// buildQueueNode creates a yaml.Node representing the queue section.
// Zero-valued optional fields are omitted so saved configs stay small.
func buildQueueNode(qc queue.Config) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}

	appendScalar := func(key, value string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
	}

	typ := qc.Type
	if typ == "" {
		typ = queue.TypeDirq
	}
	appendScalar("type", typ)
	appendScalar("path", qc.Path)

	appendDuration := func(key string, d time.Duration) {
		if d > 0 {
			appendScalar(key, d.String())
		}
	}
	appendDuration("granularity", qc.Granularity)
	appendDuration("max_lock", qc.MaxLock)
	appendDuration("max_temp", qc.MaxTemp)

	return node
}

// writeAtomic writes data to path via a temp file and rename, so a
// crash never leaves a half-written config behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	temp, err := os.CreateTemp(dir, ".courier.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
