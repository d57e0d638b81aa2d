package main

import (
	"fmt"
	"io"

	"auction-site/internal/currency"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRatesCommand() *cobra.Command {
	var amount int64

	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Show the currency rates bids can be placed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			converter := currency.NewConverter(cfg.Currency.RatesFile, cfg.Currency.Reference)
			return renderRates(cmd.OutOrStdout(), converter, amount)
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 100, "reference amount to show converted")
	return cmd
}

// renderRates prints one row per known currency with amount converted into it.
func renderRates(w io.Writer, converter *currency.Converter, amount int64) error {
	codes, err := converter.Currencies()
	if err != nil {
		return err
	}
	rates, err := converter.Rates()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Currency", "Rate", currency.FormatRef(amount)})

	for _, code := range codes {
		converted, err := converter.Convert(amount, code)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{code, rates[code], currency.Format(converted, code)})
	}

	t.Render()
	return nil
}
