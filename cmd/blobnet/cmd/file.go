package cmd

import (
	"fmt"
	"text/tabwriter"

	"blobnet/internal/domain"
	"blobnet/internal/storage/sqlite"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// fileCmd groups commands over downloaded files
var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "List and find downloaded files",
}

var fileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded files",
	Long:  `List downloaded files. Every filter flag given must match.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := fileKeys(cmd.Flags())
		if err != nil {
			return err
		}

		db, err := sqlite.Open(cmdCtx, cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		files, err := db.Files().List(cmdCtx, keys...)
		if err != nil {
			return err
		}
		return NewOutputWriter().Write(files, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "ROWID\tFILE\tCLAIM\tSIZE\tSTATUS")
			for _, f := range files {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", f.RowID, f.FileName, f.ClaimName, formatBytes(f.TotalBytes), f.Status)
			}
		})
	},
}

var fileFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Show the first downloaded file matching a filter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := fileKeys(cmd.Flags())
		if err != nil {
			return err
		}
		if len(keys) != 1 {
			return fmt.Errorf("%w: find takes exactly one filter", domain.ErrInvalidInput)
		}

		db, err := sqlite.Open(cmdCtx, cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		f, err := db.Files().Find(cmdCtx, keys[0])
		if err != nil {
			return fmt.Errorf("no file matching %s: %w", keys[0], err)
		}
		return NewOutputWriter().Write(f, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "File:\t%s\n", f.DownloadPath)
			fmt.Fprintf(w, "Type:\t%s\n", f.MimeType)
			fmt.Fprintf(w, "Size:\t%s\n", formatBytes(f.TotalBytes))
			fmt.Fprintf(w, "Written:\t%s\n", formatBytes(f.WrittenBytes))
			fmt.Fprintf(w, "Claim:\t%s#%s\n", f.ClaimName, f.ClaimID)
			fmt.Fprintf(w, "Outpoint:\t%s\n", f.Outpoint)
			fmt.Fprintf(w, "SD hash:\t%s\n", f.DescriptorHash)
			fmt.Fprintf(w, "Stream hash:\t%s\n", f.StreamHash)
			fmt.Fprintf(w, "Status:\t%s\n", f.Status)
		})
	},
}

// fileFilterFlags maps filter flags to the field they select.
var fileFilterFlags = []struct {
	name  string
	usage string
	key   func(string) (domain.FileKey, error)
}{
	{"sd-hash", "stream descriptor hash", func(v string) (domain.FileKey, error) {
		id, err := domain.ParseContentDescriptorID(v)
		return domain.ByDescriptorHash(id), err
	}},
	{"file-name", "file name", plainKey(domain.ByFileName)},
	{"stream-hash", "stream hash", plainKey(domain.ByStreamHash)},
	{"rowid", "row id", func(v string) (domain.FileKey, error) {
		var id int64
		if _, err := fmt.Sscan(v, &id); err != nil {
			return domain.FileKey{}, fmt.Errorf("%w: rowid %q", domain.ErrInvalidInput, v)
		}
		return domain.ByRowID(id), nil
	}},
	{"claim-id", "claim id", plainKey(domain.ByClaimID)},
	{"outpoint", "claim outpoint (txid:nout)", plainKey(domain.ByOutpoint)},
	{"txid", "claim transaction id", plainKey(domain.ByTxID)},
	{"nout", "claim output index", func(v string) (domain.FileKey, error) {
		var nout int
		if _, err := fmt.Sscan(v, &nout); err != nil {
			return domain.FileKey{}, fmt.Errorf("%w: nout %q", domain.ErrInvalidInput, v)
		}
		return domain.ByNout(nout), nil
	}},
	{"channel-claim-id", "channel claim id", plainKey(domain.ByChannelClaimID)},
	{"channel-name", "channel name", plainKey(domain.ByChannelName)},
	{"claim-name", "claim name", plainKey(domain.ByClaimName)},
}

func plainKey(by func(string) domain.FileKey) func(string) (domain.FileKey, error) {
	return func(v string) (domain.FileKey, error) { return by(v), nil }
}

// fileKeys builds a key for every filter flag that was set.
func fileKeys(flags *pflag.FlagSet) ([]domain.FileKey, error) {
	var keys []domain.FileKey
	for _, f := range fileFilterFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return nil, err
		}
		k, err := f.key(v)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func addFileFilterFlags(flags *pflag.FlagSet) {
	for _, f := range fileFilterFlags {
		flags.String(f.name, "", "filter by "+f.usage)
	}
}

func init() {
	addFileFilterFlags(fileListCmd.Flags())
	addFileFilterFlags(fileFindCmd.Flags())

	fileCmd.AddCommand(fileListCmd, fileFindCmd)
}
