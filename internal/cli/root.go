package cli

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"campsite/pkg/client"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
)

const (
	EnvServerURL     = "CAMPSITE_URL"
	defaultServerURL = "http://localhost:8080"
	requestTimeout   = 15 * time.Second
)

type options struct {
	server string
}

func (o *options) client() *client.ReservationClient {
	return client.NewReservationClient(o.server)
}

// NewRoot builds the campsitectl command tree.
func NewRoot() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "campsitectl",
		Short:         "Manage campsite reservations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv(EnvServerURL)
	if server == "" {
		server = defaultServerURL
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "reservations service base URL (env "+EnvServerURL+")")

	cmd.AddCommand(newAvailableCmd(opts))
	cmd.AddCommand(newReserveCmd(opts))
	cmd.AddCommand(newModifyCmd(opts))
	cmd.AddCommand(newCancelCmd(opts))
	cmd.AddCommand(newGetCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	return cmd
}

func parseDateFlag(value string) (civil.Date, error) {
	if value == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(value)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
