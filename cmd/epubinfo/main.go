// Command epubinfo inspects and repairs ePub files from the command
// line: it prints package metadata and navigation, runs structural
// checks, and rewrites files into normalized containers.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mholland/epub"
)

// Version is the semantic version (set via -ldflags).
var Version = "dev"

var (
	verbose bool
	lenient bool

	rootCmd = &cobra.Command{
		Use:   "epubinfo",
		Short: "Inspect and repair ePub files",
		Long: `epubinfo reads ePub 2 and ePub 3 files and exposes their package
document, manifest, spine and navigation models.

Examples:
  epubinfo info book.epub           Print metadata and navigation
  epubinfo check book.epub          Validate structure, report warnings
  epubinfo repack book.epub out.epub   Rewrite into a normalized container`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&lenient, "lenient", false, "tolerate mimetype defects")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(repackCmd)
}

func main() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// openBook opens path with the flags applied and a default guide
// corrector installed.
func openBook(path string) (*epub.Epub, error) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	book, err := epub.OpenWithOptions(path, epub.Options{
		LenientMimetype: lenient,
		Corrector:       epub.NewGuideCorrector(epub.DefaultGuideCorrections()),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	for _, w := range book.Warnings() {
		log.Warn(w)
	}
	return book, nil
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Print package metadata and navigation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer book.Close()

		md := book.Metadata()
		fmt.Printf("Version:    %s (%s)\n", book.Version(), book.Format())
		if t := md.PrimaryTitle(); t != "" {
			fmt.Printf("Title:      %s\n", t)
		}
		if id := md.PrimaryIdentifier(); id != "" {
			fmt.Printf("Identifier: %s\n", id)
		}
		for _, lang := range md.Languages {
			fmt.Printf("Language:   %s\n", lang.Value)
		}
		fmt.Printf("Resources:  %d manifest items, %d spine entries\n",
			len(book.Manifest().Items), len(book.Spine().ItemRefs))

		if toc := book.TableOfContents(); toc != nil && len(toc.Entries) > 0 {
			fmt.Println("Contents:")
			printEntries(toc.Entries, 1)
		}
		return nil
	},
}

func printEntries(entries []epub.TOCEntry, depth int) {
	for _, e := range entries {
		fmt.Printf("%s%s (%s)\n", strings.Repeat("  ", depth), e.Title, e.Href)
		printEntries(e.Children, depth+1)
	}
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate structure and report warnings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer book.Close()

		warnings := book.Warnings()
		if len(warnings) == 0 {
			log.Info("no problems found", "file", args[0])
			return nil
		}
		for _, w := range warnings {
			log.Warn(w, "file", args[0])
		}
		return errors.Errorf("%d warning(s)", len(warnings))
	},
}

var repackCmd = &cobra.Command{
	Use:   "repack <file> <output>",
	Short: "Rewrite into a normalized container",
	Long: `Repack reads the file, re-serializes the container descriptor, package
document and navigation documents, and writes a fresh archive with the
mimetype entry first and uncompressed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer book.Close()

		if err := book.Save(args[1]); err != nil {
			return errors.Wrapf(err, "repack %s", args[1])
		}
		log.Info("repacked", "from", args[0], "to", args[1])
		return nil
	},
}
