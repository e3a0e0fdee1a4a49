//go:build linux

package uffd

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrNoWriteProtect indicates the kernel cannot write-protect the
	// registered range, so clean/dirty transitions would be invisible.
	ErrNoWriteProtect = errors.New("uffd: write-protect not supported for range")
)

// Event is one page-fault notification.
type Event struct {
	// Addr is the faulting address. Exact when the kernel granted
	// UFFD_FEATURE_EXACT_ADDRESS, page-aligned otherwise.
	Addr uintptr
	// Write reports a write access on a missing page.
	Write bool
	// WP reports a write access on a populated write-protected page.
	WP bool
}

// Handle owns a userfaultfd descriptor and its shutdown pipe.
type Handle struct {
	fd    int
	exact bool

	stopR int
	stopW int

	zero []byte // scratch for write-protected zero population
}

// New opens a userfaultfd and performs the API handshake. Exact fault
// addresses are requested when the kernel offers them.
func New() (*Handle, error) {
	fd, exact, err := open()
	if err != nil {
		return nil, err
	}
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("uffd: pipe: %w", err)
	}
	return &Handle{fd: fd, exact: exact, stopR: p[0], stopW: p[1]}, nil
}

// open creates the descriptor and negotiates the API, retrying without
// optional features for older kernels.
func open() (fd int, exact bool, err error) {
	for _, features := range []uint64{featureExactAddress, 0} {
		fd, err = newFD()
		if err != nil {
			return 0, false, err
		}
		api := uffdioAPI{API: apiVersion, Features: features}
		if ierr := ioctl(fd, ioctlAPI, unsafe.Pointer(&api)); ierr != nil {
			unix.Close(fd)
			if features != 0 && errors.Is(ierr, unix.EINVAL) {
				continue
			}
			return 0, false, fmt.Errorf("uffd: api handshake: %w", ierr)
		}
		return fd, features != 0, nil
	}
	return 0, false, fmt.Errorf("uffd: api handshake failed")
}

func newFD() (int, error) {
	flags := uintptr(unix.O_CLOEXEC | unix.O_NONBLOCK)
	r, _, errno := unix.Syscall(unix.SYS_USERFAULTFD, flags|userModeOnly, 0, 0)
	if errno == unix.EINVAL {
		// Pre-5.11 kernels reject UFFD_USER_MODE_ONLY.
		r, _, errno = unix.Syscall(unix.SYS_USERFAULTFD, flags, 0, 0)
	}
	if errno != 0 {
		return 0, fmt.Errorf("uffd: userfaultfd: %w", errno)
	}
	return int(r), nil
}

// ExactAddress reports whether fault events carry exact addresses rather
// than page-aligned ones.
func (h *Handle) ExactAddress() bool {
	return h.exact
}

// Register puts [base, base+size) under missing+write-protect tracking.
// size must be page-rounded.
func (h *Handle) Register(base uintptr, size int) error {
	r := uffdioRegister{
		Range: uffdioRange{Start: uint64(base), Len: uint64(size)},
		Mode:  registerModeMissing | registerModeWP,
	}
	if err := ioctl(h.fd, ioctlRegister, unsafe.Pointer(&r)); err != nil {
		return fmt.Errorf("uffd: register: %w", err)
	}
	const need = bitCopy | bitZeropage | bitWriteprotect | bitWake
	if r.Ioctls&need != need {
		h.Unregister(base, size)
		return ErrNoWriteProtect
	}
	return nil
}

// Unregister removes the range from tracking.
func (h *Handle) Unregister(base uintptr, size int) error {
	r := uffdioRange{Start: uint64(base), Len: uint64(size)}
	if err := ioctl(h.fd, ioctlUnregister, unsafe.Pointer(&r)); err != nil {
		return fmt.Errorf("uffd: unregister: %w", err)
	}
	return nil
}

// Copy populates [dst, dst+len(src)) with src and wakes the faulting
// thread. With wp the pages come up write-protected. src length must be
// page-rounded.
func (h *Handle) Copy(dst uintptr, src []byte, wp bool) error {
	var mode uint64
	if wp {
		mode = copyModeWP
	}
	var done uint64
	total := uint64(len(src))
	for done < total {
		c := uffdioCopy{
			Dst:  uint64(dst) + done,
			Src:  uint64(uintptr(unsafe.Pointer(&src[done]))),
			Len:  total - done,
			Mode: mode,
		}
		err := ioctl(h.fd, ioctlCopy, unsafe.Pointer(&c))
		switch {
		case err == nil:
			done = total
		case errors.Is(err, unix.EAGAIN):
			if c.Copy > 0 {
				done += uint64(c.Copy)
			}
		case errors.Is(err, unix.EEXIST):
			// Pages already present; just make sure the waiter runs.
			return h.Wake(dst, int(total))
		default:
			return fmt.Errorf("uffd: copy: %w", err)
		}
	}
	return nil
}

// ZeroPopulate fills [dst, dst+size) with zero pages and wakes the
// faulting thread. size must be page-rounded.
func (h *Handle) ZeroPopulate(dst uintptr, size int, wp bool) error {
	if wp {
		// UFFDIO_ZEROPAGE cannot write-protect, so copy from a zero
		// buffer instead.
		if len(h.zero) < size {
			h.zero = make([]byte, size)
		}
		return h.Copy(dst, h.zero[:size], true)
	}
	var done uint64
	total := uint64(size)
	for done < total {
		z := uffdioZeropage{
			Range: uffdioRange{Start: uint64(dst) + done, Len: total - done},
		}
		err := ioctl(h.fd, ioctlZeropage, unsafe.Pointer(&z))
		switch {
		case err == nil:
			done = total
		case errors.Is(err, unix.EAGAIN):
			if z.Zeropage > 0 {
				done += uint64(z.Zeropage)
			}
		case errors.Is(err, unix.EEXIST):
			return h.Wake(dst, size)
		default:
			return fmt.Errorf("uffd: zeropage: %w", err)
		}
	}
	return nil
}

// WriteUnprotect clears write protection on the range and wakes any
// thread blocked on it.
func (h *Handle) WriteUnprotect(base uintptr, size int) error {
	w := uffdioWriteprotect{
		Range: uffdioRange{Start: uint64(base), Len: uint64(size)},
	}
	if err := ioctl(h.fd, ioctlWriteprotect, unsafe.Pointer(&w)); err != nil {
		return fmt.Errorf("uffd: write-unprotect: %w", err)
	}
	return nil
}

// Wake unblocks threads faulting in the range without populating it.
func (h *Handle) Wake(base uintptr, size int) error {
	r := uffdioRange{Start: uint64(base), Len: uint64(size)}
	if err := ioctl(h.fd, ioctlWake, unsafe.Pointer(&r)); err != nil {
		return fmt.Errorf("uffd: wake: %w", err)
	}
	return nil
}

// Serve reads fault events and hands them to fn until Shutdown is called.
// It is meant to run on its own goroutine; fn runs on that goroutine.
func (h *Handle) Serve(fn func(Event)) {
	var msg uffdMsg
	buf := (*[msgSize]byte)(unsafe.Pointer(&msg))[:]
	for {
		fds := []unix.PollFd{
			{Fd: int32(h.fd), Events: unix.POLLIN},
			{Fd: int32(h.stopR), Events: unix.POLLIN},
		}
		n, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return
		}
		for {
			rn, rerr := unix.Read(h.fd, buf)
			if rerr != nil || rn < msgSize {
				break
			}
			if msg.Event != eventPagefault {
				continue
			}
			fn(Event{
				Addr:  uintptr(msg.Address),
				Write: msg.Flags&pagefaultFlagWrite != 0,
				WP:    msg.Flags&pagefaultFlagWP != 0,
			})
		}
	}
}

// Shutdown makes Serve return. It may be called once.
func (h *Handle) Shutdown() {
	unix.Write(h.stopW, []byte{0})
}

// Close releases the descriptor and the shutdown pipe. Call only after
// Serve has returned.
func (h *Handle) Close() error {
	unix.Close(h.stopR)
	unix.Close(h.stopW)
	if err := unix.Close(h.fd); err != nil {
		return fmt.Errorf("uffd: close: %w", err)
	}
	return nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
