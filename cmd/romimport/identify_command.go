package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"romimport/internal/hashing"
	"romimport/internal/queue"
)

type identifyReport struct {
	Path       string            `json:"path"`
	Kind       queue.FileKind    `json:"kind"`
	Digest     *hashing.Digest   `json:"digest,omitempty"`
	Candidates []queue.Candidate `json:"candidates,omitempty"`
	BIOS       string            `json:"bios,omitempty"`
	Titles     []string          `json:"titles,omitempty"`
}

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "identify <file>",
		Short: "Classify a file and list its candidate systems without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, 0, func(rt *runtime) error {
				svc := rt.identifier()
				item := &queue.Item{URL: path}
				report := identifyReport{Path: path}

				report.Kind, err = svc.ClassifyItem(cmd.Context(), item)
				if err != nil {
					return err
				}
				switch report.Kind {
				case queue.FileBIOS:
					snap := svc.Snapshot()
					if bios, ok := snap.BIOSByName(filepath.Base(path)); ok {
						report.BIOS = bios.System
					}
					if digest, err := svc.Digest(cmd.Context(), item); err == nil {
						report.Digest = &digest
						if bios, ok := snap.BIOSByDigest(digest.MD5); ok {
							report.BIOS = bios.System
						}
					}
				case queue.FileROM, queue.FileDiscImage, queue.FileUnknown:
					report.Candidates, err = svc.DetermineSystems(cmd.Context(), item)
					if err != nil {
						return err
					}
					if !item.Digest.IsZero() {
						digest := item.Digest
						report.Digest = &digest
						for _, entry := range rt.index.Match(digest) {
							report.Titles = append(report.Titles, fmt.Sprintf("%s (%s)", entry.Title, entry.System))
						}
					}
				}

				if jsonOutput {
					return writeJSON(cmd, report)
				}
				printIdentifyReport(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printIdentifyReport(cmd *cobra.Command, report identifyReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", report.Path)
	fmt.Fprintf(out, "Kind: %s\n", report.Kind)
	if report.Digest != nil {
		fmt.Fprintf(out, "MD5:   %s\nCRC32: %s\nSHA1:  %s\n", report.Digest.MD5, report.Digest.CRC32, report.Digest.SHA1)
		if report.Digest.Offset > 0 {
			fmt.Fprintf(out, "Header skipped: %d bytes\n", report.Digest.Offset)
		}
	}
	switch report.Kind {
	case queue.FileBIOS:
		if report.BIOS != "" {
			fmt.Fprintf(out, "BIOS for: %s\n", report.BIOS)
		}
		return
	case queue.FileArchive:
		fmt.Fprintln(out, "Archive: contents are identified after import expands it")
		return
	case queue.FileDirectory:
		fmt.Fprintln(out, "Directory: import scans it with the configured patterns")
		return
	case queue.FileArtwork:
		fmt.Fprintln(out, "Artwork: attached to a game with the same title on import")
		return
	}
	for _, title := range report.Titles {
		fmt.Fprintf(out, "Reference: %s\n", title)
	}
	if len(report.Candidates) == 0 {
		fmt.Fprintln(out, "No system matched")
		return
	}
	rows := make([][]string, 0, len(report.Candidates))
	for _, candidate := range report.Candidates {
		rows = append(rows, []string{candidate.System, string(candidate.Source)})
	}
	printTable(out, []string{"System", "Matched by"}, rows, nil)
	if len(report.Candidates) > 1 {
		fmt.Fprintln(out, "Multiple systems match; import will wait for `romimport queue choose`")
	}
}
