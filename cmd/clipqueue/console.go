package main

import (
	"bufio"
	"clip-queue/domain"
	"clip-queue/projection"
	"clip-queue/services"
	"clip-queue/sink"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
)

func useColours(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printer writes queue activity to the terminal. It also serves as a
// clipboard bridge so received items show up as they arrive.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func newPrinter(out io.Writer, colours bool) *printer {
	return &printer{out: out, colours: colours}
}

func (p *printer) paint(style color.Style, s string) string {
	if !p.colours {
		return s
	}
	return style.Render(s)
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *printer) Insert(_ context.Context, item domain.ClipboardItem) error {
	from := item.SenderName
	if from == "" {
		from = string(item.SenderID)
	}
	switch item.Kind {
	case domain.ItemImage:
		p.println(fmt.Sprintf("%s %s (%d bytes)", p.paint(color.New(color.FgCyan), "["+from+"]"), item.MimeType, len(item.Image)))
	default:
		p.println(fmt.Sprintf("%s %s", p.paint(color.New(color.FgCyan), "["+from+"]"), item.Text))
	}
	return nil
}

func (p *printer) status(status domain.QueueStatus) {
	style := color.New(color.FgYellow)
	if status.Role.Active() {
		style = color.New(color.FgGreen)
	}
	line := fmt.Sprintf("queue %s", status.Role)
	switch status.Role {
	case domain.RoleHosting:
		line = fmt.Sprintf("hosting %q on port %d as %s", status.QueueName, status.Port, status.SelfName)
	case domain.RoleConnected:
		line = fmt.Sprintf("connected to %q at %s:%d as %s", status.QueueName, status.Host, status.Port, status.SelfName)
	}
	p.println(p.paint(style, "* "+line))
}

func (p *printer) members(members []domain.MemberView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	renderMembers(p.out, members)
}

// notificationWorker prints status and membership changes.
type notificationWorker struct {
	notifications *sink.ChannelNotifier
	printer       *printer
}

func newNotificationWorker(notifications *sink.ChannelNotifier, printer *printer) *notificationWorker {
	return &notificationWorker{notifications: notifications, printer: printer}
}

func (w *notificationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-w.notifications.C():
			switch n.Kind {
			case sink.QueueStatusChanged:
				w.printer.status(n.Status)
			case sink.QueueMembersChanged:
				if len(n.Members) > 0 {
					w.printer.println(fmt.Sprintf("* %d member(s) in the queue", len(n.Members)))
				}
			}
		}
	}
}

// console turns stdin lines into queue operations.
type console struct {
	service  services.IQueueService
	timeline *projection.Timeline
	printer  *printer
}

func newConsole(service services.IQueueService, timeline *projection.Timeline, printer *printer) *console {
	return &console{service: service, timeline: timeline, printer: printer}
}

func (c *console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.Execute(ctx, line)
			if err != nil {
				c.printer.println(c.printer.paint(color.New(color.FgRed), "! "+err.Error()))
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs one console line. Anything that is not a command is published as text.
func (c *console) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return false, nil
	}
	command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch command {
	case "/quit":
		return true, nil
	case "/status":
		c.printer.status(c.service.Status())
		return false, nil
	case "/members":
		c.printer.members(c.service.Members())
		return false, nil
	case "/recent":
		c.printer.mu.Lock()
		renderItems(c.printer.out, c.timeline.Items())
		c.printer.mu.Unlock()
		return false, nil
	case "/image":
		path := strings.TrimSpace(arg)
		if path == "" {
			return false, fmt.Errorf("usage: /image <path>")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return false, err
		}
		return false, c.service.PublishImage(ctx, data)
	default:
		return false, c.service.PublishText(ctx, line)
	}
}
