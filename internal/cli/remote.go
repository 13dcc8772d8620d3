package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mayhapottabi/docchat/internal/client"
	"github.com/mayhapottabi/docchat/internal/tui"
)

// remoteFlags are shared by commands that talk to a running server.
type remoteFlags struct {
	server string
	token  string
}

func (f *remoteFlags) register(cmd *cobra.Command) {
	server := os.Getenv("DOCCHAT_SERVER")
	if server == "" {
		server = "http://localhost:3000"
	}
	cmd.Flags().StringVar(&f.server, "server", server, "docchat server URL ($DOCCHAT_SERVER)")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token (default $DOCCHAT_TOKEN)")
}

func (f *remoteFlags) client() (*client.Client, error) {
	token := f.token
	if token == "" {
		token = os.Getenv("DOCCHAT_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("no token: pass --token or set DOCCHAT_TOKEN")
	}
	return client.New(f.server, token, nil), nil
}

var (
	uploadFlags    remoteFlags
	documentsFlags remoteFlags
	tuiFlags       remoteFlags
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload PDF files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := uploadFlags.client()
		if err != nil {
			return err
		}

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			res, err := c.Upload(cmd.Context(), filepath.Base(path), data)
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\n", res.DocumentID, res.Name, res.ChunkCount)
		}
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"ls"},
	Short:   "List uploaded documents, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := documentsFlags.client()
		if err != nil {
			return err
		}

		docs, err := c.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Name, d.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the terminal client.

Controls:
  j/k, ↓/↑ - Navigate documents
  Enter    - Open chat / Send question
  u        - Upload a PDF
  d        - Delete document
  Esc      - Back
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := tuiFlags.client()
		if err != nil {
			return err
		}
		if err := c.Health(cmd.Context()); err != nil {
			return fmt.Errorf("server at %s is not reachable: %w", tuiFlags.server, err)
		}
		return tui.Run(cmd.Context(), c)
	},
}

func init() {
	uploadFlags.register(uploadCmd)
	documentsFlags.register(documentsCmd)
	tuiFlags.register(tuiCmd)
	rootCmd.AddCommand(uploadCmd, documentsCmd, tuiCmd)
}
