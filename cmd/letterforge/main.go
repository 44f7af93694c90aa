/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"letterforge/internal/config"
	"letterforge/internal/crash"
	"letterforge/internal/domain"
	applog "letterforge/internal/log"
	"letterforge/internal/telemetry"
	"letterforge/internal/textlayout"
	"letterforge/internal/version"
)

// errUsage makes run print the usage text and exit with code 2.
var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "letterforge: document template editor")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  letterforge version                          Show version")
	fmt.Fprintln(w, "  letterforge new <title>                      Create an empty template")
	fmt.Fprintln(w, "  letterforge list                             List templates, newest first")
	fmt.Fprintln(w, "  letterforge search [-raw] <query>            Full text search")
	fmt.Fprintln(w, "  letterforge show <id>                        Print a template's elements")
	fmt.Fprintln(w, "  letterforge import <id|new> <file>           Place text blocks and tables from a text file")
	fmt.Fprintln(w, "  letterforge export [-preset p] [-out dir] <id>  Render with an export preset (print|office|web)")
	fmt.Fprintln(w, "  letterforge history <id>                     Show persisted history entries")
	fmt.Fprintln(w, "  letterforge delete <id>                      Delete a template")
	fmt.Fprintln(w, "  letterforge publish <id>...                  Push templates to the remote repository")
	fmt.Fprintln(w, "  letterforge pull <id>                        Fetch a template from the remote repository")
	fmt.Fprintln(w, "  letterforge remote [-search q]               List or search remote templates")
	fmt.Fprintln(w, "  letterforge pack export <file> [id]...       Bundle templates into a .lfpack")
	fmt.Fprintln(w, "  letterforge pack install <file>              Install a template pack")
	fmt.Fprintln(w, "  letterforge pack inspect <file>              Show a pack's manifest")
	fmt.Fprintln(w, "  letterforge watch                            Keep the index in sync and run maintenance")
	fmt.Fprintln(w, "  letterforge ui [<id>]                        Launch desktop UI (build with -tags fyne)")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run loads configuration, wires logging and telemetry and dispatches one
// command. It returns the process exit code.
func run(args []string, out io.Writer) (code int) {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")

	sess := &crash.Session{}
	defer crash.Recover(sess)

	cfg, password, err := config.Load()
	if err != nil {
		// a broken file should not lock the user out; defaults still work
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	telemetry.SetDefault(telemetry.Config{
		OptIn:     cfg.Telemetry.OptIn,
		EventsURL: cfg.Telemetry.EventsURL,
		CrashURL:  cfg.Telemetry.CrashURL,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Default().Flush(ctx)
	}()

	a := &cli{cfg: cfg, password: password, out: out, sess: sess, log: applog.WithComponent("cli"), provider: textlayout.ProviderFor("go")}
	l.Debug("start", slog.Int("args", len(args)))
	err = a.dispatch(context.Background(), args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		usage(out)
		return 2
	default:
		l.Error("command failed", slog.Any("err", err))
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
}

// cli carries the state shared by all commands.
type cli struct {
	cfg      config.AppConfig
	password string
	out      io.Writer
	sess     *crash.Session
	log      *slog.Logger
	provider textlayout.Provider
}

func (a *cli) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, "letterforge", version.String())
		return nil
	case "help", "-h", "--help":
		usage(a.out)
		return nil
	case "new":
		return a.cmdNew(ctx, rest)
	case "list":
		return a.cmdList(ctx, rest)
	case "search":
		return a.cmdSearch(ctx, rest)
	case "show":
		return a.cmdShow(ctx, rest)
	case "import":
		return a.cmdImport(ctx, rest)
	case "export":
		return a.cmdExport(ctx, rest)
	case "history":
		return a.cmdHistory(ctx, rest)
	case "delete":
		return a.cmdDelete(ctx, rest)
	case "publish":
		return a.cmdPublish(ctx, rest)
	case "pull":
		return a.cmdPull(ctx, rest)
	case "remote":
		return a.cmdRemote(ctx, rest)
	case "pack":
		return a.cmdPack(ctx, rest)
	case "watch":
		return a.cmdWatch(ctx, rest)
	case "ui":
		return a.cmdUI(ctx, rest)
	}
	return errUsage
}

// current registers doc with the crash session so a panic autosaves it.
func (a *cli) current(doc func() domain.Document) { a.sess.Current = doc }
