//go:build unix

package transport

import (
	"context"
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen builds the socket by hand. net.ListenConfig always sets
// SO_REUSEADDR and passes its own backlog to listen(2).
func listen(ctx context.Context, cfg ListenConfig) (net.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr, err := splitListenAddr(cfg.Address)
	if err != nil {
		return nil, err
	}

	if addr.IP == nil || (addr.IP.IsUnspecified() && addr.IP.To4() == nil) {
		// Wildcard: try dual-stack first, then IPv4-only hosts.
		ln, err := listenFamily(unix.AF_INET6, addr, cfg, true)
		if errors.Is(err, unix.EAFNOSUPPORT) {
			return listenFamily(unix.AF_INET, addr, cfg, false)
		}
		return ln, err
	}
	if addr.IP.To4() != nil {
		return listenFamily(unix.AF_INET, addr, cfg, false)
	}
	return listenFamily(unix.AF_INET6, addr, cfg, false)
}

func listenFamily(family int, addr *net.TCPAddr, cfg ListenConfig, dualStack bool) (net.Listener, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	owned := false
	defer func() {
		if !owned {
			unix.Close(fd)
		}
	}()

	if cfg.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return nil, os.NewSyscallError("setsockopt", err)
		}
	}

	var sa unix.Sockaddr
	switch family {
	case unix.AF_INET:
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa = sa4
	default:
		if dualStack {
			if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
				return nil, os.NewSyscallError("setsockopt", err)
			}
		}
		sa6 := &unix.SockaddrInet6{Port: addr.Port}
		if ip16 := addr.IP.To16(); ip16 != nil {
			copy(sa6.Addr[:], ip16)
		}
		if addr.Zone != "" {
			if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
				sa6.ZoneId = uint32(ifi.Index)
			}
		}
		sa = sa6
	}

	if err := unix.Bind(fd, sa); err != nil {
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, cfg.Backlog); err != nil {
		return nil, os.NewSyscallError("listen", err)
	}

	f := os.NewFile(uintptr(fd), "tcp-listener")
	owned = true
	defer f.Close()

	// FileListener dups the descriptor; f is closed on return.
	return net.FileListener(f)
}
