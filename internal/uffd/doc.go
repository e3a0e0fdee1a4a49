// Package uffd wraps the userfaultfd(2) surface the paging engine needs:
// range registration in missing+write-protect mode, populate and
// write-protect resolution, and a poll-based event loop that hands page
// faults to a callback while the faulting thread sleeps in the kernel.
//
// userfaultfd is Linux-only; on other platforms this package is empty.
package uffd
