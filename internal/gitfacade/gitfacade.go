// Foam
// Copyright (C) 2024+ the Foam contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package gitfacade implements the `git` command surface described in
// spec §4.7 by binding go-git to a vfs.BillyFS rooted at the repository's
// working directory: Foam never shells out to a real git binary, since
// there isn't one in a browser sandbox, but go-git gives every other part
// of the plumbing (object model, refs, index, smart-HTTP transport) for
// free.
package gitfacade

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/foam/foam/internal/vfs"
)

// Facade binds a *vfs.VFS to go-git, answering one `git` invocation at a
// time the way internal/shell/builtins dispatches every other coreutils
// command: parse argv, do the thing, write text to stdout/stderr.
type Facade struct {
	VFS *vfs.VFS

	// RelayURL, when set, is prefixed in front of absolute http(s) clone
	// URLs (scheme stripped) so the browser's CORS restrictions don't block
	// the smart-HTTP fetch (spec §4.7, "CORS relay"). Other URLs are used
	// as given.
	RelayURL string

	// Identity is the default commit author used when the repository has
	// none configured (spec §4.7's "author.name/email fallback").
	IdentityName  string
	IdentityEmail string
}

// New returns a Facade bound to v.
func New(v *vfs.VFS) *Facade {
	return &Facade{VFS: v, IdentityName: "foam", IdentityEmail: "foam@localhost"}
}

// Run dispatches one `git <subcommand> ...` invocation against cwd,
// writing output to out and errors to errOut, and returns a process exit
// status (0 success, nonzero otherwise, matching the real git CLI).
func (obj *Facade) Run(cwd string, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "git: missing command")
		return 1
	}
	sub, rest := args[0], args[1:]
	var err error
	switch sub {
	case "init":
		err = obj.Init(cwd)
	case "clone":
		err = obj.Clone(cwd, rest)
	case "add":
		err = obj.Add(cwd, rest)
	case "commit":
		err = obj.Commit(cwd, rest, out)
	case "status":
		err = obj.Status(cwd, out)
	case "log":
		err = obj.Log(cwd, out)
	case "diff":
		err = obj.Diff(cwd, out)
	case "branch":
		err = obj.Branch(cwd, rest, out)
	case "checkout":
		err = obj.Checkout(cwd, rest)
	case "remote":
		err = obj.Remote(cwd, rest, out)
	case "config":
		err = obj.Config(cwd, rest, out)
	default:
		fmt.Fprintf(errOut, "git: '%s' is not a git command\n", sub)
		return 1
	}
	if err != nil {
		fmt.Fprintf(errOut, "git: %s\n", err.Error())
		return 1
	}
	return 0
}

// open builds the billy.Filesystem + go-git filesystem storage pair rooted
// at dir. go-git keeps `.git` as a sibling directory inside the same
// billy.Filesystem, matching how it lays out an on-disk repository.
func (obj *Facade) open(dir string) (*git.Repository, error) {
	wt := vfs.NewBillyFS(obj.VFS, dir)
	dotGit, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	storer := filesystem.NewStorage(dotGit, nil)
	return git.Open(storer, wt)
}

// Init creates a new repository at dir, pre-creating dir and its ancestors
// the way the teacher's resource lifecycle methods pre-create their
// working directories before handing off to a library (spec §4.7); .git
// itself is created by go-git's storage initialization.
func (obj *Facade) Init(dir string) error {
	if err := obj.VFS.Mkdir(dir, vfs.MkdirOptions{Recursive: true}); err != nil {
		return err
	}
	wt := vfs.NewBillyFS(obj.VFS, dir)
	dotGit, err := wt.Chroot(".git")
	if err != nil {
		return err
	}
	storer := filesystem.NewStorage(dotGit, nil)
	_, err = git.Init(storer, wt)
	return err
}

// Clone shallow-clones (depth 1, single branch) the given URL into dir,
// per spec §4.7's resource-budget rationale for browser-sandboxed clones.
// When RelayURL is set, absolute http(s) URLs are routed through it to
// sidestep the browser's CORS policy on the real git host.
func (obj *Facade) Clone(dir string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: git clone <url> [dir]")
	}
	url := obj.relay(args[0])
	target := dir
	if len(args) > 1 {
		target = obj.VFS.Resolver.ResolveFrom(args[1], dir)
	}
	if err := obj.VFS.Mkdir(target, vfs.MkdirOptions{Recursive: true}); err != nil {
		return err
	}
	wt := vfs.NewBillyFS(obj.VFS, target)
	dotGit, err := wt.Chroot(".git")
	if err != nil {
		return err
	}
	storer := filesystem.NewStorage(dotGit, nil)
	_, err = git.Clone(storer, wt, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	})
	return err
}

func (obj *Facade) relay(url string) string {
	if obj.RelayURL == "" {
		return url
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return obj.RelayURL + "/" + strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	}
	return url
}

// Add stages paths (or everything, for "."/"-A") into the index.
func (obj *Facade) Add(dir string, args []string) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if len(args) == 0 || args[0] == "." || args[0] == "-A" {
		_, err = wt.Add(".")
		return err
	}
	for _, p := range args {
		if _, err := wt.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Commit records a new commit from the current index, using -m's message
// or failing the way real git does without one.
func (obj *Facade) Commit(dir string, args []string, out io.Writer) error {
	msg := ""
	for i := 0; i < len(args); i++ {
		if args[i] == "-m" && i+1 < len(args) {
			msg = args[i+1]
			i++
		}
	}
	if msg == "" {
		return fmt.Errorf("aborting commit due to empty commit message")
	}
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: obj.IdentityName, Email: obj.IdentityEmail},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "[%s] %s\n", hash.String()[:7], msg)
	return nil
}

// Status renders `git status --short`-equivalent output.
func (obj *Facade) Status(dir string, out io.Writer) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	st, err := wt.Status()
	if err != nil {
		return err
	}
	if st.IsClean() {
		fmt.Fprintln(out, "nothing to commit, working tree clean")
		return nil
	}
	for path, s := range st {
		fmt.Fprintf(out, "%c%c %s\n", s.Staging, s.Worktree, path)
	}
	return nil
}

// Log renders a one-line-per-commit history, newest first.
func (obj *Facade) Log(dir string, out io.Writer) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return err
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return err
	}
	return iter.ForEach(func(c *object.Commit) error {
		fmt.Fprintf(out, "%s %s\n", c.Hash.String()[:7], firstLine(c.Message))
		return nil
	})
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// Diff prints one `diff --git a/<path> b/<path>` header line for every path
// the worktree status reports as changed. No hunks or file contents are
// rendered.
func (obj *Facade) Diff(dir string, out io.Writer) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	st, err := wt.Status()
	if err != nil {
		return err
	}
	for path := range st {
		fmt.Fprintf(out, "diff --git a/%s b/%s\n", path, path)
	}
	return nil
}

// Branch lists or creates branches.
func (obj *Facade) Branch(dir string, args []string, out io.Writer) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		refs, err := repo.Branches()
		if err != nil {
			return err
		}
		return refs.ForEach(func(ref *plumbing.Reference) error {
			fmt.Fprintln(out, ref.Name().Short())
			return nil
		})
	}
	head, err := repo.Head()
	if err != nil {
		return err
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(args[0]), head.Hash())
	return repo.Storer.SetReference(ref)
}

// Checkout switches the worktree to an existing branch/commit, or creates
// one first with -b.
func (obj *Facade) Checkout(dir string, args []string) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if len(args) == 2 && args[0] == "-b" {
		return wt.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(args[1]),
			Create: true,
		})
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: git checkout [-b] <branch>")
	}
	return wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(args[0])})
}

// Remote manages the `origin`-style remote list.
func (obj *Facade) Remote(dir string, args []string, out io.Writer) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		remotes, err := repo.Remotes()
		if err != nil {
			return err
		}
		for _, r := range remotes {
			fmt.Fprintln(out, r.Config().Name)
		}
		return nil
	}
	if len(args) == 3 && args[0] == "add" {
		_, err := repo.CreateRemote(&config.RemoteConfig{Name: args[1], URLs: []string{args[2]}})
		return err
	}
	return fmt.Errorf("unsupported remote subcommand")
}

// Config reads/writes the small subset of git config Foam exposes
// (user.name, user.email).
func (obj *Facade) Config(dir string, args []string, out io.Writer) error {
	repo, err := obj.open(dir)
	if err != nil {
		return err
	}
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	switch {
	case len(args) == 1 && args[0] == "user.name":
		fmt.Fprintln(out, cfg.User.Name)
	case len(args) == 1 && args[0] == "user.email":
		fmt.Fprintln(out, cfg.User.Email)
	case len(args) == 2 && args[0] == "user.name":
		cfg.User.Name = args[1]
		obj.IdentityName = args[1]
		return repo.SetConfig(cfg)
	case len(args) == 2 && args[0] == "user.email":
		cfg.User.Email = args[1]
		obj.IdentityEmail = args[1]
		return repo.SetConfig(cfg)
	default:
		return fmt.Errorf("unsupported config key")
	}
	return nil
}
