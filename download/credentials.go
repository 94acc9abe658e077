/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package download

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of the environment variables read by
// CredentialsFromEnv: FHCTL_USERNAME and FHCTL_TOKEN.
const EnvPrefix = "FHCTL"

// Credentials authenticate artifact downloads against the mod portal.
// They are passed explicitly to every download and never stored.
type Credentials struct {
	Username string `envconfig:"USERNAME"`
	Token    string `envconfig:"TOKEN"`
}

// CredentialsFromEnv reads credentials from the environment.
func CredentialsFromEnv() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return Credentials{}, fmt.Errorf("reading credentials from environment: %w", err)
	}
	return c, nil
}

// Merge returns c with empty fields filled from other.
func (c Credentials) Merge(other Credentials) Credentials {
	if c.Username == "" {
		c.Username = other.Username
	}
	if c.Token == "" {
		c.Token = other.Token
	}
	return c
}

// Validate reports whether both fields are set.
func (c Credentials) Validate() error {
	var errs []error
	if c.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("token is required"))
	}
	return errors.Join(errs...)
}

// String implements fmt.Stringer. The token is never printed.
func (c Credentials) String() string {
	if c.Token == "" {
		return c.Username
	}
	return c.Username + ":<redacted>"
}

// GoString implements fmt.GoStringer so %#v does not leak the token either.
func (c Credentials) GoString() string {
	return fmt.Sprintf("download.Credentials{Username:%q, Token:<redacted>}", c.Username)
}
