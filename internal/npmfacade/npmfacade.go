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

// Package npmfacade implements the `npm` command surface of spec §4.8:
// registry metadata lookup, tarball fetch-and-extract into node_modules,
// and package.json read/modify/run. Tarballs are real npm registry
// tarballs (gzip-compressed tar archives); klauspost/compress supplies the
// gzip reader and the standard library's archive/tar unpacks the entries,
// the same split the teacher's engine/resources package uses for its own
// compressed resource fetches.
package npmfacade

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/klauspost/compress/gzip"

	"github.com/foam/foam/internal/errwrap"
	"github.com/foam/foam/internal/vfs"
)

// PackageJSON mirrors the handful of package.json fields Foam's npm
// façade actually reads or writes.
type PackageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

type registryPackument struct {
	Name     string                        `json:"name"`
	DistTags map[string]string             `json:"dist-tags"`
	Versions map[string]registryVersionDoc `json:"versions"`
}

type registryVersionDoc struct {
	Version string `json:"version"`
	Dist    struct {
		Tarball string `json:"tarball"`
	} `json:"dist"`
}

// Facade resolves package metadata and tarballs against a configurable
// registry/CDN pair (spec §4.8's "registry metadata fetch... CDN
// fallback") and unpacks into a vfs.VFS-backed node_modules tree.
type Facade struct {
	VFS         *vfs.VFS
	RegistryURL string
	CDNURL      string
	HTTPClient  *http.Client
	Logf        func(string, ...interface{})
}

// New returns a Facade pointed at the public npm registry by default.
func New(v *vfs.VFS) *Facade {
	return &Facade{
		VFS:         v,
		RegistryURL: "https://registry.npmjs.org",
		CDNURL:      "https://cdn.jsdelivr.net/npm",
		HTTPClient:  &http.Client{},
	}
}

func (obj *Facade) logf(format string, v ...interface{}) {
	if obj.Logf != nil {
		obj.Logf(format, v...)
	}
}

// ReadPackageJSON loads dir/package.json.
func (obj *Facade) ReadPackageJSON(dir string) (*PackageJSON, error) {
	data, err := obj.VFS.ReadFile(joinPath(dir, "package.json"), vfs.ReadFileOptions{})
	if err != nil {
		return nil, err
	}
	pkg := &PackageJSON{}
	if err := json.Unmarshal(data, pkg); err != nil {
		return nil, errwrap.Wrapf(err, "parsing package.json")
	}
	return pkg, nil
}

// WritePackageJSON serializes pkg back to dir/package.json.
func (obj *Facade) WritePackageJSON(dir string, pkg *PackageJSON) error {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return obj.VFS.WriteFile(joinPath(dir, "package.json"), data, vfs.WriteFileOptions{})
}

func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

// Init writes a minimal package.json, the `npm init -y` behavior.
func (obj *Facade) Init(dir, name string) error {
	if name == "" {
		name = "app"
	}
	return obj.WritePackageJSON(dir, &PackageJSON{Name: name, Version: "1.0.0", Scripts: map[string]string{}})
}

// fetchPackument retrieves and parses the registry's package metadata
// document for name.
func (obj *Facade) fetchPackument(name string) (*registryPackument, error) {
	url := obj.RegistryURL + "/" + name
	resp, err := obj.HTTPClient.Get(url)
	if err != nil {
		return nil, errwrap.Wrapf(err, "fetching %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned %s for %s", resp.Status, name)
	}
	doc := &registryPackument{}
	if err := json.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, errwrap.Wrapf(err, "decoding packument for %s", name)
	}
	return doc, nil
}

// resolveTarballURL picks the tarball for the requested version spec
// (empty/"latest" uses dist-tags.latest). The CDN mirror URL is used only
// when the registry's version document carries no tarball URL; a failure
// to reach the registry is reported by fetchPackument and not retried
// against the CDN.
func (obj *Facade) resolveTarballURL(doc *registryPackument, versionSpec string) (string, string, error) {
	version := versionSpec
	if version == "" || version == "latest" {
		version = doc.DistTags["latest"]
	}
	v, ok := doc.Versions[version]
	if !ok {
		return "", "", fmt.Errorf("no version %q for %s", version, doc.Name)
	}
	if v.Dist.Tarball != "" {
		return v.Dist.Tarball, version, nil
	}
	return fmt.Sprintf("%s/%s@%s", obj.CDNURL, doc.Name, version), version, nil
}

// Install fetches name (optionally "name@version") and unpacks it into
// dir/node_modules/name, recording it as a dependency in package.json.
func (obj *Facade) Install(dir, spec string) error {
	name, version := splitSpec(spec)
	doc, err := obj.fetchPackument(name)
	if err != nil {
		return err
	}
	tarballURL, resolved, err := obj.resolveTarballURL(doc, version)
	if err != nil {
		return err
	}
	obj.logf("npm: fetching %s@%s", name, resolved)

	resp, err := obj.HTTPClient.Get(tarballURL)
	if err != nil {
		return errwrap.Wrapf(err, "downloading %s", tarballURL)
	}
	defer resp.Body.Close()

	target := joinPath(joinPath(dir, "node_modules"), name)
	if err := obj.VFS.Mkdir(target, vfs.MkdirOptions{Recursive: true}); err != nil {
		return err
	}
	if err := obj.extractTarball(resp.Body, target); err != nil {
		return err
	}

	pkg, err := obj.ReadPackageJSON(dir)
	if err != nil {
		pkg = &PackageJSON{Name: "app", Version: "1.0.0"}
	}
	if pkg.Dependencies == nil {
		pkg.Dependencies = map[string]string{}
	}
	pkg.Dependencies[name] = "^" + resolved
	return obj.WritePackageJSON(dir, pkg)
}

func splitSpec(spec string) (name, version string) {
	if idx := strings.LastIndex(spec, "@"); idx > 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, ""
}

// extractTarball gunzips and untars src into dest, stripping the leading
// "package/" path component every npm tarball wraps its files in, and
// skipping anything that isn't a regular file or directory (spec §4.8:
// "symlinks/non-regular entries skipped").
func (obj *Facade) extractTarball(src io.Reader, dest string) error {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return errwrap.Wrapf(err, "opening tarball")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errwrap.Wrapf(err, "reading tar entry")
		}
		name := strings.TrimPrefix(hdr.Name, "package/")
		if name == "" {
			continue
		}
		path := joinPath(dest, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := obj.VFS.Mkdir(path, vfs.MkdirOptions{Recursive: true}); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := obj.VFS.Mkdir(parentOf(path), vfs.MkdirOptions{Recursive: true}); err != nil {
				return err
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return err
			}
			if err := obj.VFS.WriteFile(path, data, vfs.WriteFileOptions{}); err != nil {
				return err
			}
		default:
			continue
		}
	}
}

func parentOf(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// List returns the sorted names of the installed top-level packages, the
// `npm list` behavior restricted to depth 0. A missing node_modules
// directory yields an empty list and no error.
func (obj *Facade) List(dir string) ([]string, error) {
	entries, err := obj.VFS.Readdir(joinPath(dir, "node_modules"), vfs.ReaddirOptions{})
	if err != nil {
		return nil, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ScriptCommand returns the shell command line registered under name in
// package.json's "scripts" map, the text `npm run name` hands to the
// executor.
func (obj *Facade) ScriptCommand(dir, name string) (string, error) {
	pkg, err := obj.ReadPackageJSON(dir)
	if err != nil {
		return "", err
	}
	cmd, ok := pkg.Scripts[name]
	if !ok {
		return "", fmt.Errorf("missing script: %s", name)
	}
	return cmd, nil
}

// ScriptEnv builds the npm_package_*/npm_config_* environment variables a
// real npm exports into a running script's process environment, the way
// `npm run` lets a script read `$npm_package_name` (spec §4.8). Field
// names are converted with strcase the same way npm derives them from
// package.json's nested keys.
func ScriptEnv(pkg *PackageJSON, config map[string]string) map[string]string {
	out := map[string]string{
		"npm_package_name":    pkg.Name,
		"npm_package_version": pkg.Version,
	}
	for k, v := range config {
		out["npm_config_"+strcase.ToSnake(k)] = v
	}
	return out
}
