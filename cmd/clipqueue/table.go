package main

import (
	"clip-queue/domain"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

func renderMembers(w io.Writer, members []domain.MemberView) {
	table := newTable(w, []string{"", "Name", "ID", "Address", "Last seen"})
	for _, m := range members {
		self := ""
		if m.IsSelf {
			self = "*"
		}
		seen := ""
		if m.LastSeen != nil {
			seen = m.LastSeen.Local().Format(time.TimeOnly)
		}
		table.Append([]string{self, m.Name, string(m.ID), m.Addr, seen})
	}
	table.Render()
}

func renderItems(w io.Writer, items []domain.ClipboardItem) {
	table := newTable(w, []string{"Received", "From", "Kind", "Content"})
	for _, item := range items {
		table.Append([]string{
			item.ReceivedAt.Local().Format(time.DateTime),
			item.SenderName,
			string(item.Kind),
			summary(item),
		})
	}
	table.Render()
}

func summary(item domain.ClipboardItem) string {
	if item.Kind == domain.ItemImage {
		return fmt.Sprintf("%s, %d bytes", item.MimeType, len(item.Image))
	}
	text := []rune(item.Text)
	if len(text) > 60 {
		return string(text[:57]) + "..."
	}
	return string(text)
}
