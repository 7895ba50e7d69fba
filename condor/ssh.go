/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package condor

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type (
	// SSHConfig describes how to reach a remote access point.
	SSHConfig struct {
		Host           string
		Port           int
		User           string
		KeyFile        string
		KnownHostsFile string
		Timeout        time.Duration
	}

	// SSHRunner runs the HTCondor tools on a remote access point.  A new
	// connection is made for every command; xfer issues only a handful.
	SSHRunner struct {
		cfg     SSHConfig
		BinDir  string
		sshConf *ssh.ClientConfig
	}
)

func NewSSHRunner(cfg SSHConfig) (*SSHRunner, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh host is empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}

	keyFile, err := homedir.Expand(cfg.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "invalid ssh key path")
	}
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ssh private key")
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ssh private key")
	}

	var hostKeyCallback ssh.HostKeyCallback
	if cfg.KnownHostsFile != "" {
		knownHostsFile, err := homedir.Expand(cfg.KnownHostsFile)
		if err != nil {
			return nil, errors.Wrap(err, "invalid known_hosts path")
		}
		if hostKeyCallback, err = knownhosts.New(knownHostsFile); err != nil {
			return nil, errors.Wrap(err, "failed to load known_hosts")
		}
	} else {
		log.Warnln("Condor.SSHKnownHosts is not set; the host key of", cfg.Host, "will not be verified")
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &SSHRunner{
		cfg: cfg,
		sshConf: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         cfg.Timeout,
		},
	}, nil
}

// shellQuote quotes an argument for a POSIX shell.
func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func (r *SSHRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	if r.BinDir != "" {
		name = strings.TrimSuffix(r.BinDir, "/") + "/" + name
	}
	parts := []string{shellQuote(name)}
	for _, arg := range args {
		parts = append(parts, shellQuote(arg))
	}
	command := strings.Join(parts, " ")

	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	dialer := net.Dialer{Timeout: r.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	cconn, chans, reqs, err := ssh.NewClientConn(conn, addr, r.sshConf)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh handshake with %s failed", addr)
	}
	client := ssh.NewClient(cconn, chans, reqs)
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ssh session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if stdin != nil {
		sess.Stdin = stdin
	}

	log.Debugf("Running on %s: %s", r.cfg.Host, command)
	done := make(chan error, 1)
	go func() {
		done <- sess.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return stdout.Bytes(), &CommandError{
				Err:    err,
				Debug:  r.cfg.Host + ": " + command,
				Stderr: stderr.String(),
			}
		}
		return stdout.Bytes(), nil
	}
}
