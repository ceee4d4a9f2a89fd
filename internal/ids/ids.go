// Package ids generates sortable unique identifiers for all persisted rows.
package ids

import "github.com/segmentio/ksuid"

func New() string {
	return ksuid.New().String()
}
