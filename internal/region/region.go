// Package region implements the Region & Permissions component of
// spec.md §4.1: the value type for a tracked byte span, page arithmetic
// over it, and the mprotect(2) wrapper used to revoke and restore access.
package region

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/heaptrap/internal/errors"
)

// Perm is a union of access rights, mirroring mprotect's PROT_* bits.
type Perm int

const (
	PermNone  Perm = 0
	PermRead  Perm = 1 << 0
	PermWrite Perm = 1 << 1
	PermExec  Perm = 1 << 2
)

func (p Perm) protFlags() int {
	var prot int
	if p&PermRead != 0 {
		prot |= unix.PROT_READ
	}

	if p&PermWrite != 0 {
		prot |= unix.PROT_WRITE
	}

	if p&PermExec != 0 {
		prot |= unix.PROT_EXEC
	}

	return prot
}

var (
	pageSizeOnce sync.Once
	pageSize     uintptr
	pageMask     uintptr
)

// PageSize returns the system page size, cached after the first call.
func PageSize() uintptr {
	pageSizeOnce.Do(func() {
		pageSize = uintptr(unix.Getpagesize())
		pageMask = pageSize - 1
	})

	return pageSize
}

func floorPage(addr uintptr) uintptr {
	PageSize()
	return addr &^ pageMask
}

func ceilPage(addr uintptr) uintptr {
	PageSize()
	return (addr + pageMask) &^ pageMask
}

// Region is a contiguous tracked byte span. Base is the exact value
// returned by the underlying allocator; Size is the user-requested size,
// not page-rounded (spec.md §3).
type Region struct {
	Base uintptr
	Size uintptr

	mu   sync.Mutex
	perm Perm
}

// New constructs a Region for a freshly allocated span.
func New(base, size uintptr) *Region {
	return &Region{Base: base, Size: size}
}

// Contains reports whether p falls inside [Base, Base+Size).
func (r *Region) Contains(p uintptr) bool {
	return p >= r.Base && p < r.Base+r.Size
}

// PageOf returns the one-page region containing addr.
func PageOf(addr uintptr) Region {
	base := floorPage(addr)
	return Region{Base: base, Size: PageSize()}
}

// Pages returns the inclusive page cover of r: one entry per page that
// r's byte span intersects, in ascending address order.
func (r *Region) Pages() []Region {
	start := floorPage(r.Base)
	end := ceilPage(r.Base + r.Size)

	n := int((end - start) / PageSize())
	pages := make([]Region, 0, n)

	for addr := start; addr < end; addr += PageSize() {
		pages = append(pages, Region{Base: addr, Size: PageSize()})
	}

	return pages
}

// Permission returns the region's current permission mask.
func (r *Region) Permission() Perm {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.perm
}

// ChangePermissions calls mprotect over the whole-page span covering r and
// records the resulting mask. Failure is fatal: per spec.md §4.1/§7 an
// mprotect failure indicates OS-level corruption of the mapping table and
// continuing would risk corrupting user memory.
func (r *Region) ChangePermissions(p Perm) {
	start := floorPage(r.Base)
	end := ceilPage(r.Base + r.Size)
	length := end - start

	buf := unsafe.Slice((*byte)(unsafe.Pointer(start)), length)
	if err := unix.Mprotect(buf, p.protFlags()); err != nil {
		errors.Fatal(errors.MprotectFailed(start, length, err))
	}

	r.mu.Lock()
	r.perm = p
	r.mu.Unlock()
}

// Protect sets the region's pages to PermNone.
func (r *Region) Protect() {
	r.ChangePermissions(PermNone)
}

// Unprotect sets the region's pages to read|write.
func (r *Region) Unprotect() {
	r.ChangePermissions(PermRead | PermWrite)
}

// AsBytes returns a read view of the region's memory. Safe only when the
// region's permissions currently include PermRead; callers on the fault
// and scheduler paths guarantee this via the protect/unprotect fence
// (spec.md §4.5).
func (r *Region) AsBytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r.Base)), r.Size)
}

// AsMutBytes is AsBytes for callers that intend to write; the distinction
// is documentation only in Go (both return the same slice type) but
// mirrors the safety contract spec.md §4.1 states for as_bytes/as_mut_bytes.
func (r *Region) AsMutBytes() []byte {
	return r.AsBytes()
}

// ChangePermissionsPages applies p to the union of pages covering every
// region in rs with a single mprotect call per distinct page, as required
// by the scheduler's protect/unprotect fence (spec.md §4.5 step 3/7): this
// is what makes batched (un)protection O(distinct pages) rather than
// O(regions).
func ChangePermissionsPages(rs []*Region, p Perm) {
	for _, page := range unionPages(rs) {
		pg := page
		pg.ChangePermissions(p)
	}
}

// unionPages computes the deduplicated set of whole-page Regions covering
// every region in rs.
func unionPages(rs []*Region) []*Region {
	seen := make(map[uintptr]struct{}, len(rs))

	var union []*Region

	for _, r := range rs {
		for _, pg := range r.Pages() {
			if _, ok := seen[pg.Base]; ok {
				continue
			}

			seen[pg.Base] = struct{}{}
			p := pg
			union = append(union, &p)
		}
	}

	return union
}
