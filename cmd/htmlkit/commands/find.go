package commands

import (
	"htmlkit/lib/finder"

	"github.com/spf13/cobra"
)

var (
	findKind     *string
	findContains *bool
)

func init() {
	findKind = findCmd.PersistentFlags().StringP("kind", "k", "any", "The kind the element must have, like 'image' or 'text input'.")
	findContains = findAttrCmd.Flags().Bool("contains", false, "Matches attribute values containing <value> instead of equal to it.")

	findCmd.AddCommand(findIdCmd)
	findCmd.AddCommand(findNameCmd)
	findCmd.AddCommand(findAttrCmd)
	findCmd.AddCommand(findTextCmd)
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Looks up elements on a page.",
}

var findIdCmd = &cobra.Command{
	Use:   "id <url> <id>",
	Short: "Prints the element with the given id.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()
		page := loadPage(cmd.Context(), client, args[0])

		element, err := finder.ByID(cmd.Context(), page, args[1], parseKind(*findKind))
		if err != nil {
			printLookupFailure(err)
		}
		printElements(element)
	},
}

var findNameCmd = &cobra.Command{
	Use:   "name <url> <name>",
	Short: "Prints the first element with the given name.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()
		page := loadPage(cmd.Context(), client, args[0])

		element, err := finder.ByName(cmd.Context(), page, args[1], parseKind(*findKind))
		if err != nil {
			printLookupFailure(err)
		}
		printElements(element)
	},
}

var findAttrCmd = &cobra.Command{
	Use:   "attr <url> <tag> <attribute> <value> [--contains]",
	Short: "Prints every <tag> element whose attribute has the given value.",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()
		page := loadPage(cmd.Context(), client, args[0])

		lookup := finder.AllByAttribute
		if *findContains {
			lookup = finder.AllByAttributeContains
		}
		elements, err := lookup(cmd.Context(), page, args[1], args[2], args[3], parseKind(*findKind))
		if err != nil {
			printLookupFailure(err)
		}
		printElements(elements...)
	},
}

var findTextCmd = &cobra.Command{
	Use:   "text <url> <tag> <text>",
	Short: "Prints every <tag> element whose text is exactly the given text.",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		defer client.Close()
		page := loadPage(cmd.Context(), client, args[0])

		elements, err := finder.AllByText(cmd.Context(), page, args[1], args[2], parseKind(*findKind))
		if err != nil {
			printLookupFailure(err)
		}
		printElements(elements...)
	},
}
