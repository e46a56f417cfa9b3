package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the job label used when pushing to a Pushgateway.
const PushJob = "wh2900_relay"

// Export writes the registry to a node_exporter textfile and/or a Pushgateway.
// Empty targets are skipped. Both are attempted even if the first fails.
func (m *Metrics) Export(ctx context.Context, textfile, pushgateway string) error {
	var errs []error

	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, m.Registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}

	if pushgateway != "" {
		err := push.New(pushgateway, PushJob).Gatherer(m.Registry).PushContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}

	return errors.Join(errs...)
}
