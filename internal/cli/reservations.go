package cli

import (
	"context"
	"fmt"

	"campsite/pkg/model"

	"github.com/spf13/cobra"
)

func newAvailableCmd(opts *options) *cobra.Command {
	var from, to string
	c := &cobra.Command{
		Use:   "available",
		Short: "List free dates, by default for the next month",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := parseDateFlag(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			toDate, err := parseDateFlag(to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			dates, err := opts.client().Available(ctx, fromDate, toDate)
			if err != nil {
				return err
			}
			for _, d := range dates {
				fmt.Fprintln(cmd.OutOrStdout(), d.String())
			}
			return nil
		},
	}
	c.Flags().StringVar(&from, "from", "", "first date of the window (YYYY-MM-DD)")
	c.Flags().StringVar(&to, "to", "", "day after the last date of the window (YYYY-MM-DD)")
	return c
}

func newReserveCmd(opts *options) *cobra.Command {
	var name, email, from, to, key string
	c := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve the campsite for [from, to)",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end, err := parseDateFlag(to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			res, err := opts.client().ReserveWithKey(ctx, &model.ReservationRequest{
				FullName:  name,
				Email:     email,
				StartDate: start,
				EndDate:   end,
			}, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	c.Flags().StringVar(&name, "name", "", "guest full name")
	c.Flags().StringVar(&email, "email", "", "guest email")
	c.Flags().StringVar(&from, "from", "", "arrival date (YYYY-MM-DD)")
	c.Flags().StringVar(&to, "to", "", "departure date (YYYY-MM-DD)")
	c.Flags().StringVar(&key, "idempotency-key", "", "reuse when retrying so the reservation is made at most once")
	for _, f := range []string{"name", "email", "from", "to"} {
		_ = c.MarkFlagRequired(f)
	}
	return c
}

func newModifyCmd(opts *options) *cobra.Command {
	var from, to string
	c := &cobra.Command{
		Use:   "modify <id>",
		Short: "Move a reservation to new dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end, err := parseDateFlag(to)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			res, err := opts.client().Modify(ctx, args[0], &model.ReservationDatesRequest{
				StartDate: start,
				EndDate:   end,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	c.Flags().StringVar(&from, "from", "", "new arrival date (YYYY-MM-DD)")
	c.Flags().StringVar(&to, "to", "", "new departure date (YYYY-MM-DD)")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func newCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			if err := opts.client().Cancel(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled reservation:", args[0])
			return nil
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			res, err := opts.client().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	var limit int
	var offset int64
	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations ordered by arrival date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			page, err := opts.client().List(ctx, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		},
	}
	c.Flags().IntVar(&limit, "limit", 10, "page size")
	c.Flags().Int64Var(&offset, "offset", 0, "number of reservations to skip")
	return c
}
