package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/padkey/internal/client"
	"github.com/haukened/padkey/internal/codec"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/keyfile"
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}
	return client.New(server)
}

func newEncodeCmd() *cobra.Command {
	var (
		out      string
		date     string
		remote   bool
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Turn a file into a key against the server's current pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			src := args[0]
			data, err := os.ReadFile(src) // #nosec G304 user supplied input path
			if err != nil {
				return err
			}
			if date == "" {
				date = domain.DateID(now()).String()
			}
			ext := keyfile.Extension(src)
			var key keyfile.Key
			if remote {
				key, err = c.Encode(cmd.Context(), date, ext, data)
			} else {
				key, err = encodeLocal(cmd, c, date, ext, data)
			}
			if err != nil {
				return err
			}
			if out == "" {
				out = src + ".key.json"
				if compress {
					out += keyfile.CompressedExt
				}
			}
			if err := keyfile.WriteFile(out, key); err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "key written to %s (%d positions, pool %s)\n", out, len(key.Positions), key.Date)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "key file path (default <file>.key.json)")
	cmd.Flags().StringVar(&date, "date", "", "pool date YYYY-MM-DD (default today, UTC)")
	cmd.Flags().BoolVar(&remote, "remote", false, "encode on the server instead of downloading the pool")
	cmd.Flags().BoolVar(&compress, "compress", false, "write a zstd compressed key ("+keyfile.CompressedExt+")")
	return cmd
}

func encodeLocal(cmd *cobra.Command, c *client.Client, date, ext string, data []byte) (keyfile.Key, error) {
	p, err := c.FetchPool(cmd.Context(), date)
	if err != nil {
		return keyfile.Key{}, fmt.Errorf("download pool %s: %w", date, err)
	}
	positions, err := codec.Encode(p, data)
	if err != nil {
		return keyfile.Key{}, err
	}
	return keyfile.Key{Date: date, FileExtension: ext, Positions: positions}, nil
}

func newDecodeCmd() *cobra.Command {
	var (
		out    string
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "decode <key>",
		Short: "Rebuild a file from a key while its pool is still kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			key, err := keyfile.ReadFile(args[0])
			if err != nil {
				return err
			}
			var data []byte
			if remote {
				data, err = c.Decode(cmd.Context(), key)
			} else {
				data, err = decodeLocal(cmd, c, key)
			}
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("pool %s has expired or is unavailable: %w", key.Date, err)
			}
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(args[0]), keyfile.ReconstructedName(key.FileExtension))
			}
			if err := writeExclusive(out, data); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "file rebuilt to %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default reconstructed_file.<ext> beside the key)")
	cmd.Flags().BoolVar(&remote, "remote", false, "decode on the server instead of downloading the pool")
	return cmd
}

func decodeLocal(cmd *cobra.Command, c *client.Client, key keyfile.Key) ([]byte, error) {
	p, err := c.FetchPool(cmd.Context(), key.Date)
	if err != nil {
		return nil, err
	}
	return codec.Decode(p, key.Positions)
}

// writeExclusive writes data to a new file and refuses to replace one.
func writeExclusive(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 user supplied output path
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()
	_, err = f.Write(data)
	return err
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show how long keys issued by the server stay valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			s, err := c.Config(cmd.Context())
			if err != nil {
				return err
			}
			writeValidity(cmd.OutOrStdout(), s.Mode, s.DaysToKeep)
			return nil
		},
	}
}

// writeValidity prints the validity guidance for a server's settings.
func writeValidity(w io.Writer, mode domain.Mode, days int) {
	_, _ = fmt.Fprintf(w, "mode: %s\n", mode)
	switch {
	case mode == domain.ModeSingle:
		_, _ = fmt.Fprintln(w, "keys stay valid indefinitely (single pool, never rotated)")
	case days == domain.KeepForever:
		_, _ = fmt.Fprintln(w, "keys stay valid indefinitely (daily pools are never deleted)")
	case max(1, days) == 1:
		_, _ = fmt.Fprintln(w, "keys are valid until midnight UTC of the day they were made")
	default:
		_, _ = fmt.Fprintf(w, "keys are valid for about %d days (newest %d daily pools kept)\n", days, days)
	}
}
