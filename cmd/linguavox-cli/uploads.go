package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/linguavox/linguavox/internal/client"
	"github.com/linguavox/linguavox/internal/poll"
)

type serverOptions struct {
	Server   string
	Interval time.Duration
	Wait     bool
}

func addServerFlag(fs *flag.FlagSet, opts *serverOptions, defaultServer string) {
	fs.StringVar(&opts.Server, "server", defaultServer, "Base URL of the linguavox API server")
}

func (c *commandContext) defaultServer() string {
	if c.Config.HTTP.BaseURL != "" {
		return c.Config.HTTP.BaseURL
	}
	return "http://localhost:8080"
}

func (c *commandContext) apiClient(server string) (*client.Client, error) {
	return client.New(client.Options{BaseURL: server, Logger: c.Logger})
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runSubmit(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := serverOptions{Interval: poll.DefaultInterval}
	addServerFlag(fs, &opts, cmdCtx.defaultServer())
	fs.BoolVar(&opts.Wait, "wait", false, "Poll until the upload reaches a terminal status")
	fs.DurationVar(&opts.Interval, "interval", poll.DefaultInterval, "Polling interval used with --wait")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: submit [flags] <audio-file>")
	}
	path := fs.Arg(0)

	ctx, stop := signalContext(cmdCtx.Ctx)
	defer stop()

	api, err := cmdCtx.apiClient(opts.Server)
	if err != nil {
		return err
	}

	file, err := os.Open(path) // #nosec G304 - path is an operator-supplied CLI argument
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("file close failed", "error", closeErr)
		}
	}()

	id, err := api.Submit(ctx, filepath.Base(path), file)
	if err != nil {
		return fmt.Errorf("submit %s: %w", path, err)
	}

	if err := writef(os.Stdout, "submitted %s as %s\n", filepath.Base(path), id); err != nil {
		return err
	}

	if !opts.Wait {
		return nil
	}
	return watchUpload(ctx, api, id, opts.Interval)
}

func runStatus(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts serverOptions
	addServerFlag(fs, &opts, cmdCtx.defaultServer())

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: status [flags] <upload-id>")
	}
	id := fs.Arg(0)

	ctx, stop := signalContext(cmdCtx.Ctx)
	defer stop()

	api, err := cmdCtx.apiClient(opts.Server)
	if err != nil {
		return err
	}

	resp, err := api.Status(ctx, id)
	if err != nil {
		return err
	}
	return renderStatus(resp)
}

func runWatch(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := serverOptions{Interval: poll.DefaultInterval}
	addServerFlag(fs, &opts, cmdCtx.defaultServer())
	fs.DurationVar(&opts.Interval, "interval", poll.DefaultInterval, "Polling interval")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: watch [flags] <upload-id>")
	}
	id := fs.Arg(0)

	ctx, stop := signalContext(cmdCtx.Ctx)
	defer stop()

	api, err := cmdCtx.apiClient(opts.Server)
	if err != nil {
		return err
	}

	return resumeUpload(ctx, api, id, opts.Interval)
}

// watchUpload tracks a freshly submitted upload until it is terminal.
func watchUpload(ctx context.Context, api *client.Client, id string, interval time.Duration) error {
	return runPoller(ctx, api, id, interval, false)
}

// resumeUpload re-attaches to an existing upload: one immediate query, then
// polling if it is still processing.
func resumeUpload(ctx context.Context, api *client.Client, id string, interval time.Duration) error {
	return runPoller(ctx, api, id, interval, true)
}

func runPoller(ctx context.Context, api *client.Client, id string, interval time.Duration, resume bool) error {
	var renderErr error
	poller, err := poll.New(poll.Options{
		Client:   api,
		Interval: interval,
		OnTerminal: func(resp *client.StatusResponse) {
			renderErr = renderStatus(resp)
		},
	})
	if err != nil {
		return err
	}

	if resume {
		err = poller.Resume(ctx, id)
	} else {
		err = poller.Track(ctx, id)
	}
	if err != nil {
		return err
	}

	<-poller.Done()
	if poller.State() != poll.StateDone {
		poller.Cancel()
		return ctx.Err()
	}
	return renderErr
}

func runStats(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts serverOptions
	addServerFlag(fs, &opts, cmdCtx.defaultServer())

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signalContext(cmdCtx.Ctx)
	defer stop()

	api, err := cmdCtx.apiClient(opts.Server)
	if err != nil {
		return err
	}

	stats, err := api.Stats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value int
	}{
		{"total", stats.Total},
		{"pending", stats.Pending},
		{"claimed", stats.Claimed},
		{"completed", stats.Completed},
		{"failed", stats.Failed},
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%d\n", row.label, row.value); err != nil {
			return err
		}
	}
	return w.Flush()
}

func renderStatus(resp *client.StatusResponse) error {
	switch resp.Status {
	case "completed":
		if err := writef(os.Stdout, "%s\tcompleted\tlanguage=%s\n", resp.ID, resp.Result.Language); err != nil {
			return err
		}
		if resp.Result.Transcript != nil && *resp.Result.Transcript != "" {
			return writef(os.Stdout, "transcript: %s\n", *resp.Result.Transcript)
		}
		return nil
	case "failed":
		return writef(os.Stdout, "%s\tfailed\t%s: %s\n", resp.ID, resp.Error.Code, resp.Error.Message)
	default:
		return writef(os.Stdout, "%s\t%s\n", resp.ID, resp.Status)
	}
}
