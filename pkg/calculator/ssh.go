package calculator

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/jihwankim/fzgo/pkg/extract"
)

// sshConn wraps a pooled client; Mutex serializes the sessions run against
// it, since one ssh.Client session at a time keeps the remote working
// directory bookkeeping simple.
type sshConn struct {
	client *ssh.Client
	mu     sync.Mutex
}

// SSHBackend runs a case's payload on a remote host over SSH (the ssh://
// scheme), pooling one connection per user@host:port.
type SSHBackend struct {
	AutoAcceptHostKeys bool
	KeepaliveInterval  time.Duration
	Resolver           *extract.ShellResolver
	SigningMethod      ssh.AuthMethod // from agent or a loaded private key

	mu    sync.Mutex
	conns map[string]*sshConn
}

func NewSSHBackend(auth ssh.AuthMethod, autoAccept bool, keepalive time.Duration, resolver *extract.ShellResolver) *SSHBackend {
	return &SSHBackend{
		AutoAcceptHostKeys: autoAccept,
		KeepaliveInterval:  keepalive,
		Resolver:           resolver,
		SigningMethod:      auth,
		conns:              map[string]*sshConn{},
	}
}

func (b *SSHBackend) Execute(ctx context.Context, caseDir string, rawURI string) Result {
	u, err := ParseURI(rawURI)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}
	if isCancelled(ctx) {
		return Result{Status: StatusError, Err: context.Canceled}
	}

	port := u.Port
	if port == "" {
		port = "22"
	}
	user := u.User
	if user == "" {
		user = currentUser()
	}
	key := user + "@" + u.Host + ":" + port

	conn, err := b.getConn(key, user, u.Host, port)
	if err != nil {
		return Result{Status: StatusError, Err: fmt.Errorf("ssh connect %s: %w", key, err)}
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	command := u.Payload
	if b.Resolver != nil {
		command = b.Resolver.ReplaceCommandsInString(command)
	}

	remoteDir := "/tmp/fz-" + uuid.NewString()
	start := time.Now()

	if err := pushDir(conn.client, caseDir, remoteDir); err != nil {
		return Result{Status: StatusError, Err: fmt.Errorf("push case dir: %w", err)}
	}

	exitCode, stdout, stderr, runErr := runRemote(conn.client, remoteDir, command)
	end := time.Now()

	_ = os.WriteFile(caseDirPath(caseDir, "out.txt"), stdout, 0o644)
	_ = os.WriteFile(caseDirPath(caseDir, "err.txt"), stderr, 0o644)
	_ = writeLog(caseDir, logEntry{
		Command: command, ExitCode: exitCode, Start: start, End: end,
		User: user, Hostname: u.Host, Cwd: remoteDir,
	})

	if err := pullDir(conn.client, remoteDir, caseDir); err != nil {
		return Result{Status: StatusError, CommandRan: command, Err: fmt.Errorf("pull case dir: %w", err)}
	}

	if runErr == nil && exitCode == 0 {
		cleanupRemote(conn.client, remoteDir)
		return Result{Status: StatusDone, CommandRan: command}
	}
	// Failure: remote dir preserved for debugging, per the backend contract.
	if runErr == nil {
		runErr = fmt.Errorf("remote command exited %d", exitCode)
	}
	return Result{Status: StatusFailed, CommandRan: command, Err: runErr}
}

func (b *SSHBackend) getConn(key, user, host, port string) (*sshConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.conns[key]; ok {
		return c, nil
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{b.SigningMethod},
		Timeout:         15 * time.Second,
		HostKeyCallback: b.hostKeyCallback(),
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, port), cfg)
	if err != nil {
		return nil, err
	}
	if b.KeepaliveInterval > 0 {
		go keepalive(client, b.KeepaliveInterval)
	}
	conn := &sshConn{client: client}
	b.conns[key] = conn
	return conn, nil
}

func (b *SSHBackend) hostKeyCallback() ssh.HostKeyCallback {
	if b.AutoAcceptHostKeys {
		return ssh.InsecureIgnoreHostKey()
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return fmt.Errorf("host key verification required for %s (auto-accept disabled)", hostname)
	}
}

func keepalive(client *ssh.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if _, _, err := client.SendRequest("keepalive@fzgo", true, nil); err != nil {
			return
		}
	}
}

// pushDir tars caseDir and pipes it into a remote "mkdir -p DIR && tar -xf - -C DIR".
func pushDir(client *ssh.Client, localDir, remoteDir string) error {
	session, err := client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		err := filepath.WalkDir(localDir, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(localDir, p)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			hdr := &tar.Header{Name: rel, Size: int64(len(data)), Mode: 0o644}
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			_, err = tw.Write(data)
			return err
		})
		if err == nil {
			err = tw.Close()
		}
		pw.CloseWithError(err)
	}()

	session.Stdin = pr
	return session.Run("mkdir -p " + remoteDir + " && tar -xf - -C " + remoteDir)
}

func runRemote(client *ssh.Client, remoteDir, command string) (int, []byte, []byte, error) {
	session, err := client.NewSession()
	if err != nil {
		return -1, nil, nil, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	wrapped := "cd " + remoteDir + " && " + command
	runErr := session.Run(wrapped)
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			runErr = nil
		} else {
			exitCode = -1
		}
	}
	return exitCode, stdout.Bytes(), stderr.Bytes(), runErr
}

// pullDir tars remoteDir and extracts it into localDir, overwriting.
func pullDir(client *ssh.Client, remoteDir, localDir string) error {
	session, err := client.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	var buf bytes.Buffer
	session.Stdout = &buf
	if err := session.Run("tar -cf - -C " + remoteDir + " ."); err != nil {
		return err
	}

	tr := tar.NewReader(&buf)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dest := filepath.Join(localDir, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	return nil
}

func cleanupRemote(client *ssh.Client, remoteDir string) {
	session, err := client.NewSession()
	if err != nil {
		return
	}
	defer session.Close()
	_ = session.Run("rm -rf " + remoteDir)
}
