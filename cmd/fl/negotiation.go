package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/farmlink/farmlink/internal/apiclient"
	"github.com/farmlink/farmlink/internal/negotiation"
	"github.com/spf13/cobra"
)

// clientFlags identify the caller and the server for negotiation commands.
type clientFlags struct {
	user   string
	name   string
	server string
}

func newNegotiationCmd(g *globals) *cobra.Command {
	f := &clientFlags{}

	cmd := &cobra.Command{
		Use:     "negotiation",
		Aliases: []string{"neg"},
		Short:   "Show and act on a negotiation thread",
	}

	cmd.PersistentFlags().StringVarP(&f.user, "user", "u", "", "acting user id (required)")
	cmd.PersistentFlags().StringVar(&f.name, "name", "", "display name for optimistic messages")
	cmd.PersistentFlags().StringVar(&f.server, "server", "", "API base URL (overrides client.base_url)")
	cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(newNegotiationShowCmd(g, f))
	cmd.AddCommand(newNegotiationSendCmd(g, f))
	cmd.AddCommand(newNegotiationCounterCmd(g, f))
	cmd.AddCommand(newNegotiationDecideCmd(g, f, "accept", "Accept a pending negotiation (listing owner only)"))
	cmd.AddCommand(newNegotiationDecideCmd(g, f, "reject", "Reject a pending negotiation (listing owner only)"))
	return cmd
}

func newNegotiationShowCmd(g *globals, f *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a negotiation thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, err := openNegotiation(cmd, g, f, args[0])
			if err != nil {
				return err
			}
			formatThread(cmd.OutOrStdout(), vm)
			return nil
		},
	}
}

func newNegotiationSendCmd(g *globals, f *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <id> <text...>",
		Short: "Send a message in a negotiation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, err := openNegotiation(cmd, g, f, args[0])
			if err != nil {
				return err
			}
			if err := vm.SendMessage(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
				return err
			}
			formatThread(cmd.OutOrStdout(), vm)
			return nil
		},
	}
}

func newNegotiationCounterCmd(g *globals, f *clientFlags) *cobra.Command {
	var price, quantity float64

	cmd := &cobra.Command{
		Use:   "counter <id>",
		Short: "Make a counter-offer",
		Long:  "Proposes a price in fcfa for a quantity of the listing's unit. Either participant may counter.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, err := openNegotiation(cmd, g, f, args[0])
			if err != nil {
				return err
			}
			if err := vm.MakeCounterOffer(cmd.Context(), price, quantity); err != nil {
				return err
			}
			formatThread(cmd.OutOrStdout(), vm)
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "proposed price in fcfa")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "proposed quantity")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("quantity")
	return cmd
}

func newNegotiationDecideCmd(g *globals, f *clientFlags, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, err := openNegotiation(cmd, g, f, args[0])
			if err != nil {
				return err
			}
			if verb == "accept" {
				err = vm.AcceptOffer(cmd.Context())
			} else {
				err = vm.RejectOffer(cmd.Context())
			}
			if err != nil {
				return err
			}
			formatThread(cmd.OutOrStdout(), vm)
			return nil
		},
	}
}

// openNegotiation builds a view model for the caller and loads id into it.
func openNegotiation(cmd *cobra.Command, g *globals, f *clientFlags, id string) (*negotiation.ViewModel, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	base := cfg.Client.BaseURL
	if f.server != "" {
		base = f.server
	}

	client, err := apiclient.New(apiclient.Opts{
		BaseURL: base,
		UserID:  f.user,
		Timeout: cfg.Client.Timeout,
	})
	if err != nil {
		return nil, err
	}
	vm := negotiation.New(negotiation.Opts{
		API:     client,
		Session: negotiation.StaticSession{UserID: f.user, Name: f.name},
		Logger:  g.log,
		Locale:  cfg.Client.Locale,
	})
	if err := vm.Load(cmd.Context(), id); err != nil {
		if errors.Is(err, apiclient.ErrNotFound) {
			return nil, fmt.Errorf("negotiation %s not found", id)
		}
		return nil, err
	}
	return vm, nil
}

// formatThread prints the negotiation header, its listing and the thread.
func formatThread(out io.Writer, vm *negotiation.ViewModel) {
	n, ok := vm.Snapshot()
	if !ok {
		fmt.Fprintln(out, "Negotiation not found.")
		return
	}

	fmt.Fprintf(out, "Negotiation %s  [%s]\n", n.ID, n.Status)
	if l := n.Listing; l != nil {
		owner := l.OwnerName
		if owner == "" {
			owner = l.OwnerID
		}
		fmt.Fprintf(out, "%s %q by %s: %s fcfa, %s %s", l.Kind, l.Title, owner,
			negotiation.FormatAmount(l.Price), negotiation.FormatAmount(l.Quantity), l.Unit)
		if l.Location != "" {
			fmt.Fprintf(out, ", %s", l.Location)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)

	if len(n.Messages) == 0 {
		fmt.Fprintln(out, "No messages yet.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tFROM\tTYPE\tMESSAGE")
		for _, m := range n.Messages {
			from := m.UserName
			if from == "" {
				from = m.UserID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				m.Timestamp.Local().Format("2006-01-02 15:04"), from, m.Type, m.Content)
		}
		w.Flush()
	}

	if vm.CanDecide() {
		fmt.Fprintf(out, "\nYou own this listing: run `fl negotiation accept %s` or `fl negotiation reject %s`.\n", n.ID, n.ID)
	}
}
