package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/models"
)

// NewSanitizeCommand prints the filename-safe form of its arguments.
func NewSanitizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize <text>...",
		Short: "Print the certificate-key form of a text",
		Long: `Apply the certificate key rules to a text: accents are stripped,
symbols are spelled out and spaces become underscores.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			out := models.SanitizeFilename(input)
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Result("ok", map[string]string{"input": input, "sanitized": out}, func(w io.Writer) {
				fmt.Fprintln(w, out)
			})
		},
	}
}
