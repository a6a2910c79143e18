package commands

import (
	"htmlkit/lib/dom"
	"htmlkit/lib/finder"

	"github.com/spf13/cobra"
)

var (
	formKind   *string
	formValue  *string
	formAction *bool
)

func init() {
	formKind = formCmd.PersistentFlags().StringP("kind", "k", "any", "The kind the control must have.")
	formAction = formCmd.PersistentFlags().Bool("action", false, "Identifies the form by its action instead of its name.")
	formValue = formNameCmd.Flags().String("value", "", "Additionally requires the control to have this value.")

	formCmd.AddCommand(formTypeCmd)
	formCmd.AddCommand(formNameCmd)
	rootCmd.AddCommand(formCmd)
}

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Looks up the single matching control inside a form.",
}

func lookupForm(cmd *cobra.Command, page *dom.Page, form string) dom.Element {
	var element dom.Element
	var err error
	if *formAction {
		element, err = finder.FormByAction(cmd.Context(), page, form)
	} else {
		element, err = finder.FormByName(cmd.Context(), page, form)
	}
	if err != nil {
		printLookupFailure(err)
	}
	return element
}

var formTypeCmd = &cobra.Command{
	Use:   "type <url> <form> --kind <kind>",
	Short: "Prints the only control of the given kind in a form.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()
		page := loadPage(cmd.Context(), client, args[0])
		form := lookupForm(cmd, page, args[1])

		element, err := finder.SoleByType(cmd.Context(), form, parseKind(*formKind))
		if err != nil {
			printLookupFailure(err)
		}
		printElements(element)
	},
}

var formNameCmd = &cobra.Command{
	Use:   "name <url> <form> <name> [--value <value>]",
	Short: "Prints the only control with the given name in a form.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()
		page := loadPage(cmd.Context(), client, args[0])
		form := lookupForm(cmd, page, args[1])

		var element dom.Element
		var err error
		if cmd.Flags().Changed("value") {
			element, err = finder.SoleByNameAndValue(cmd.Context(), form, args[2], *formValue, parseKind(*formKind))
		} else {
			element, err = finder.SoleByName(cmd.Context(), form, args[2], parseKind(*formKind))
		}
		if err != nil {
			printLookupFailure(err)
		}
		printElements(element)
	},
}
