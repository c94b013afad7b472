// Package remote starts detached processes on another host over SSH.
// Only the spawn is observed; the remote exit status never comes back.
package remote

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tccjustin/axon/internal/config"
)

// Shell selects how the remote command line is quoted and backgrounded.
type Shell int

const (
	// ShellPosix targets sh-compatible login shells.
	ShellPosix Shell = iota
	// ShellWindows targets the cmd.exe default shell of Windows OpenSSH.
	ShellWindows
)

type SSHStarter struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	Passphrase                  []byte
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
	Shell                       Shell
}

// NewSSHStarter builds a starter from the remote section of the config.
func NewSSHStarter(cfg config.RemoteConfig, shell Shell) *SSHStarter {
	return &SSHStarter{
		Host:                        cfg.Host,
		Port:                        cfg.Port,
		User:                        cfg.User,
		KeyPath:                     cfg.KeyPath,
		KnownHostsPath:              cfg.KnownHostsPath,
		InsecureSkipHostKeyChecking: cfg.InsecureSkipHostKeyCheck,
		Timeout:                     cfg.DialTimeout(),
		Shell:                       shell,
	}
}

// StartDetached runs command in the background on the remote host and
// returns once the remote shell has spawned it.
func (r *SSHStarter) StartDetached(ctx context.Context, command []string, dir string, env []string) error {
	if len(command) == 0 {
		return os.ErrInvalid
	}

	client, err := r.dial(ctx)
	if err != nil {
		return &DialError{Host: r.Host, Cause: err}
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return &DialError{Host: r.Host, Cause: err}
	}
	defer session.Close()

	line := BuildDetachedLine(r.Shell, command, dir, env)

	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()

	select {
	case err := <-done:
		if err != nil {
			return &SpawnError{Host: r.Host, Command: line, Cause: err}
		}
		return nil
	case <-ctx.Done():
		_ = session.Close()
		return ctx.Err()
	}
}

// BuildDetachedLine renders the remote shell line that backgrounds command
// with its streams detached, so the session can close immediately.
func BuildDetachedLine(shell Shell, command []string, dir string, env []string) string {
	var b strings.Builder
	switch shell {
	case ShellWindows:
		for _, kv := range env {
			b.WriteString("set ")
			b.WriteString(windowsQuote(kv))
			b.WriteString(" && ")
		}
		b.WriteString(`start "axon" /B`)
		if dir != "" {
			b.WriteString(" /D ")
			b.WriteString(windowsQuote(dir))
		}
		for i, arg := range command {
			b.WriteByte(' ')
			if i > 0 && isCmdSwitch(command[i-1]) {
				b.WriteString(cmdPayload(arg))
				continue
			}
			b.WriteString(windowsQuote(arg))
		}
	default:
		if dir != "" {
			b.WriteString("cd ")
			b.WriteString(shellEscape(dir))
			b.WriteString(" && ")
		}
		b.WriteString("nohup env")
		for _, kv := range env {
			b.WriteByte(' ')
			b.WriteString(shellEscape(kv))
		}
		b.WriteByte(' ')
		b.WriteString(joinCommand(command[0], command[1:]))
		b.WriteString(" >/dev/null 2>&1 </dev/null &")
	}
	return b.String()
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func windowsQuote(value string) string {
	if value == "" {
		return `""`
	}
	if !strings.ContainsAny(value, " \t&|<>^\"") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func isCmdSwitch(arg string) bool {
	return strings.EqualFold(arg, "/c") || strings.EqualFold(arg, "/k")
}

// cmdPayload quotes the line run by cmd.exe /c. cmd strips exactly the first
// and last quote of such a line and keeps the rest verbatim, so inner quotes
// (such as a quoted redirect target) must be left alone.
func cmdPayload(line string) string {
	return `"` + line + `"`
}

func (r *SSHStarter) dial(ctx context.Context) (*ssh.Client, error) {
	address, err := r.address()
	if err != nil {
		return nil, err
	}

	clientCfg, err := r.clientConfig()
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: r.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (r *SSHStarter) address() (string, error) {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return "", fmt.Errorf("ssh host is required")
	}

	if r.Port != "" {
		return net.JoinHostPort(host, r.Port), nil
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	return net.JoinHostPort(host, "22"), nil
}

func (r *SSHStarter) clientConfig() (*ssh.ClientConfig, error) {
	if r.User == "" {
		return nil, fmt.Errorf("ssh user is required")
	}

	signer, err := r.signer()
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	if r.InsecureSkipHostKeyChecking {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := r.knownHostsCallback()
		if err != nil {
			return nil, err
		}
		hostKeyCallback = callback
	}

	return &ssh.ClientConfig{
		User:            r.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         r.Timeout,
	}, nil
}

func (r *SSHStarter) signer() (ssh.Signer, error) {
	if r.KeyPath == "" {
		return nil, fmt.Errorf("ssh key path is required")
	}

	privateKey, err := os.ReadFile(r.KeyPath)
	if err != nil {
		return nil, err
	}

	if len(r.Passphrase) > 0 {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, r.Passphrase)
	}

	return ssh.ParsePrivateKey(privateKey)
}

func (r *SSHStarter) knownHostsCallback() (ssh.HostKeyCallback, error) {
	path := strings.TrimSpace(r.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	return knownhosts.New(path)
}
