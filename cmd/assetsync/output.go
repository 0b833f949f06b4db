package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shaun/assetsync/internal/sync"
)

func printTree(w io.Writer, nodes []*sync.TreeNode) {
	for _, n := range nodes {
		printNode(w, n, 0)
	}
}

func printNode(w io.Writer, n *sync.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Type {
	case sync.TreeMessage:
		fmt.Fprintf(w, "%s%s\n", indent, n.Label)
		if n.ErrorMessage != "" {
			fmt.Fprintf(w, "%s  %s\n", indent, n.ErrorMessage)
		}
	case sync.TreeError:
		fmt.Fprintf(w, "%s%s  error (%s): %s\n", indent, n.Label, n.ErrorKind, n.ErrorMessage)
	case sync.TreeRepository:
		fmt.Fprintf(w, "%s%s\n", indent, n.Label)
	case sync.TreeFolder:
		fmt.Fprintf(w, "%s%s/\n", indent, n.Label)
	case sync.TreeBundle:
		fmt.Fprintf(w, "%s%s [bundle, %d files]  %s\n", indent, n.Label, len(n.Asset.BundleFiles), n.Asset.Status)
	case sync.TreeFile:
		fmt.Fprintf(w, "%s%s  %s\n", indent, n.Label, n.Asset.Status)
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

func printSummary(w io.Writer, assets []sync.Asset) {
	updates := sync.CountByStatus(assets, sync.StatusUpdateAvailable)
	modified := sync.CountByStatus(assets, sync.StatusLocallyModified)
	missing := sync.CountByStatus(assets, sync.StatusNotInstalled)
	fmt.Fprintf(w, "\n%d assets: %d not installed, %d with updates, %d locally modified\n",
		len(assets), missing, updates, modified)
}

// printAssets writes one row per asset; installed assets show when they
// were last written.
func printAssets(w io.Writer, assets []sync.Asset, manifest *sync.Manifest, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tREPOSITORY\tREMOTE PATH\tLOCAL PATH\tUPDATED")
	for _, a := range assets {
		updated := "-"
		if e, ok := manifest.Get(a.ManifestKey()); ok && a.Status != sync.StatusNotInstalled {
			updated = humanize.RelTime(e.UpdatedAt, now, "ago", "from now")
		}
		remote := a.RemotePath
		if a.IsBundle {
			remote += "/ (" + humanize.Comma(int64(len(a.BundleFiles))) + " files)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Status, a.Repo.ID(), remote, a.LocalPath, updated)
	}
	tw.Flush()
}

func printReport(w io.Writer, r sync.BulkReport) {
	fmt.Fprintf(w, "downloaded %d, updated %d, conflicts %d, failed %d\n", r.Downloaded, r.Updated, r.Conflicts, r.Failed)
}
