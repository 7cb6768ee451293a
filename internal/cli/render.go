package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/config"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/layout"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/render"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/services"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/retry"
)

const defaultDedupFile = ".delivered.json"

type renderOptions struct {
	OutDir        string
	DedupFile     string
	Workers       int
	AcceptanceURL string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <batch.json|batch.yaml>",
		Short: "Render a participant batch into a directory",
		Long: `Render every participant of a batch file and write the certificates
into the output directory. Delivered keys are recorded in a dedup file, so
rendering the same batch file again skips certificates already written.
Records without a validation_code get one derived from the batch_id, or from
the absolute path of the batch file when the batch has no id.

Batch files are JSON envelopes or their YAML equivalent. Asset references
that are not http(s) URLs are read from disk, relative to the batch file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "output", "o", "certificates", "output directory")
	cmd.Flags().StringVar(&opts.DedupFile, "dedup", "", "dedup file (default <output>/"+defaultDedupFile+")")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "participants rendered concurrently (default WORKER_COUNT)")
	cmd.Flags().StringVar(&opts.AcceptanceURL, "acceptance-url", "", "also submit certificates to this endpoint")

	return cmd
}

// renderSummary is the JSON payload of the render command.
type renderSummary struct {
	Delivered int                    `json:"delivered"`
	Skipped   int                    `json:"skipped"`
	Failed    int                    `json:"failed"`
	Outcomes  []models.OutcomeRecord `json:"outcomes"`
}

func runRender(cmd *cobra.Command, rootOpts *RootOptions, opts *renderOptions, path string) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	batch, err := readBatch(path)
	if err != nil {
		return formatter.Fail(err)
	}
	if batch.BatchID == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return formatter.Fail(err)
		}
		batch.BatchID = "file://" + filepath.ToSlash(abs)
	}

	cfg := config.FromEnv()
	level := "warn"
	if rootOpts.Verbose {
		level = "debug"
	}
	logr := logger.NewWithWriter(cmd.ErrOrStderr(), level, cfg.LogFormat)

	builder, err := newLocalBuilder(cfg, opts, filepath.Dir(path), logr)
	if err != nil {
		return formatter.Fail(err)
	}

	outcomes, err := builder.Build(cmd.Context(), batch)
	if err != nil {
		return formatter.Fail(err)
	}

	summary := summarize(outcomes)
	status := "ok"
	if summary.Failed > 0 {
		status = "error"
	}
	if err := formatter.Result(status, summary, func(w io.Writer) { printOutcomes(w, summary) }); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d certificates failed", summary.Failed, len(outcomes))
	}
	return nil
}

func newLocalBuilder(cfg *config.Config, opts *renderOptions, base string, logr *slog.Logger) (*services.CertificateBuilder, error) {
	blobs, err := services.NewDirBlobStore(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	dedupPath := opts.DedupFile
	if dedupPath == "" {
		dedupPath = filepath.Join(opts.OutDir, defaultDedupFile)
	}
	dedup, err := repository.NewFileDedupStore(dedupPath)
	if err != nil {
		return nil, err
	}

	fonts, err := render.LoadFonts(cfg.Fonts())
	if err != nil {
		return nil, err
	}

	var acceptance services.AcceptanceSender
	if opts.AcceptanceURL != "" {
		acceptance = services.NewAcceptanceClient(opts.AcceptanceURL, cfg.AcceptanceAPIKey, cfg.HTTPTimeout, logr)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.WorkerCount
	}

	m := metrics.New()
	coordinator := services.NewDeliveryCoordinator(
		blobs,
		acceptance,
		dedup,
		services.NewStatusUpdater(nil, logr),
		m,
		logr,
		cfg.Retry(),
		cfg.ClaimTTL,
	)
	resolver := &localResolver{base: base, remote: services.NewAssetClient(cfg.HTTPTimeout)}
	compositor := render.NewCompositor(layout.New(cfg.Layout()), fonts, logr)
	return services.NewCertificateBuilder(resolver, compositor, coordinator, nil, retry.Config{}, m, logr, workers), nil
}

func summarize(outcomes []models.OutcomeRecord) renderSummary {
	s := renderSummary{Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case !o.Success:
			s.Failed++
		case o.Skipped:
			s.Skipped++
		default:
			s.Delivered++
		}
	}
	return s
}

func printOutcomes(w io.Writer, s renderSummary) {
	for _, o := range s.Outcomes {
		switch {
		case !o.Success:
			fmt.Fprintf(w, "✗ %s: %s\n", o.Email, o.Error)
		case o.Skipped:
			fmt.Fprintf(w, "- %s (already delivered)\n", o.CertificateKey)
		default:
			fmt.Fprintf(w, "✓ %s\n", o.CertificateKey)
		}
	}
	fmt.Fprintf(w, "%d delivered, %d skipped, %d failed\n", s.Delivered, s.Skipped, s.Failed)
}
