/*
Copyright © 2021 the OceanDrift authors.
This file is part of OceanDrift.

OceanDrift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

OceanDrift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with OceanDrift.  If not, see <http://www.gnu.org/licenses/>.
*/

package oceandriftutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff"
)

// maybeDownload checks whether path is an existing local file, and if
// it is not but looks like a URL, downloads it to dir (or a temporary
// directory when dir is empty) and returns the downloaded location.
// c receives logging messages.
func maybeDownload(path, dir string, c chan string) (string, error) {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return fetch(path, dir, c)
	}
	return path, nil
}

// fetch downloads the file at url to dir, retrying with exponential
// backoff when the server is flaky. If dir is empty a temporary
// directory is used. A file that is already present in dir is not
// downloaded again. c receives logging messages.
func fetch(url, dir string, c chan string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ioutil.TempDir("", "oceandrift"); err != nil {
			return "", fmt.Errorf("oceandrift: creating download directory: %v", err)
		}
	} else if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("oceandrift: creating download directory: %v", err)
	}
	path := filepath.Join(dir, filepath.Base(url))
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		c <- fmt.Sprintf("%s is already downloaded", path)
		return path, nil
	}
	c <- fmt.Sprintf("Downloading %s", url)
	err := backoff.Retry(func() error {
		resp, err := http.Get(url)
		if err != nil {
			c <- err.Error()
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("oceandrift: downloading %s: %s", url, resp.Status)
			c <- err.Error()
			return err
		}
		w, err := os.Create(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			w.Close()
			os.Remove(path)
			c <- err.Error()
			return err
		}
		return w.Close()
	}, backoff.NewExponentialBackOff())
	if err != nil {
		return "", err
	}
	return path, nil
}
