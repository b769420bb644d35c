package transport

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHOpts configures SSH connection behavior.
type SSHOpts struct {
	Port     int        // 0 = default (22)
	KeyFile  string     // credential reference; empty = agent/default keys
	Password string     // for non-interactive; empty = skip password auth
	Signer   ssh.Signer // pre-resolved credential; takes precedence over KeyFile
}

// ResolveKey reads and parses the private key at path. This is the
// fail-fast credential check: a reference that cannot be resolved is
// reported before any sync work starts.
func ResolveKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", path, err)
	}
	return signer, nil
}

// DialSSH establishes an SSH connection to host as user.
//
// Auth methods are tried in order:
//  1. SSHOpts.Signer (pre-resolved key)
//  2. SSH agent (if SSH_AUTH_SOCK is set)
//  3. Key files (~/.ssh/id_ed25519, id_ecdsa, id_rsa) or SSHOpts.KeyFile
//  4. Password (if SSHOpts.Password is set)
func DialSSH(host, userName string, opts SSHOpts) (*ssh.Client, error) {
	if userName == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determine current user: %w", err)
		}
		userName = u.Username
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}

	authMethods := buildAuthMethods(opts)
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no SSH auth methods available (provide a key with -i, set SSH_AUTH_SOCK, or a password)")
	}

	hostKeyCallback, err := defaultHostKeyCallback()
	if err != nil {
		// Fall back to insecure if known_hosts can't be loaded.
		// This matches the behavior of most CLI tools on first connection.
		//nolint:gosec // fallback for systems without known_hosts
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            userName,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	return client, nil
}

func buildAuthMethods(opts SSHOpts) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	// 1. Pre-resolved signer.
	if opts.Signer != nil {
		methods = append(methods, ssh.PublicKeys(opts.Signer))
	}

	// 2. SSH agent.
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			agentClient := agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	// 3. Key files.
	if opts.Signer == nil {
		if opts.KeyFile != "" {
			if m := keyFileAuth(opts.KeyFile); m != nil {
				methods = append(methods, m)
			}
		} else {
			for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
				home, err := os.UserHomeDir()
				if err != nil {
					continue
				}
				if m := keyFileAuth(filepath.Join(home, ".ssh", name)); m != nil {
					methods = append(methods, m)
				}
			}
		}
	}

	// 4. Password.
	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}

	return methods
}

func keyFileAuth(path string) ssh.AuthMethod {
	signer, err := ResolveKey(path)
	if err != nil {
		return nil
	}
	return ssh.PublicKeys(signer)
}

func defaultHostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
}
