package genicam

import (
	"context"
	"fmt"
	"sync"

	"github.com/lbnl-vision/gogenicam/cache"
	"github.com/lbnl-vision/gogenicam/govis"
)

// Register is an addressable byte range, per spec.md §3's Register node
// kind. Its effective byte length is >=1 and its [lsb,msb] bitfield, if
// present, lies within [0, 8*length), per spec.md §3's invariant.
type Register struct {
	name      string
	c         *Container
	addresses []Property // summed contributions, spec.md §3 "possibly computed from multiple address contributions"
	length    Property
	access    AccessMode
	policy    cache.Policy
	cachable  cache.Cachable
	endian    Endianness
	sign      Sign
	hasBits   bool
	lsb, msb  int
	invalidatorNames []string
	locked    Property // SPEC_FULL.md §5.3

	invMu         sync.Mutex
	invRegistered bool
}

// RegisterConfig is the construction-time configuration for a Register,
// used by the parser.
type RegisterConfig struct {
	Name       string
	Addresses  []Property
	Length     Property
	Access     AccessMode
	Policy     cache.Policy
	Cachable   cache.Cachable
	Endian     Endianness
	Sign       Sign
	HasBits    bool
	LSB, MSB   int
	Invalidators []string
	Locked     Property
}

// NewRegister constructs a Register bound to c.
func NewRegister(c *Container, cfg RegisterConfig) *Register {
	return &Register{
		name: cfg.Name, c: c, addresses: cfg.Addresses, length: cfg.Length,
		access: cfg.Access, policy: cfg.Policy, cachable: cfg.Cachable,
		endian: cfg.Endian, sign: cfg.Sign, hasBits: cfg.HasBits,
		lsb: cfg.LSB, msb: cfg.MSB, invalidatorNames: cfg.Invalidators,
		locked: cfg.Locked,
	}
}

func (r *Register) Name() string { return r.name }

// Address sums every address contribution, per spec.md §3.
func (r *Register) Address(ctx context.Context) (uint64, error) {
	var total int64
	for _, p := range r.addresses {
		v, err := r.c.resolveInt(ctx, p)
		if err != nil {
			return 0, govis.WrapFeature(r.name, err)
		}
		total += v
	}
	return uint64(total), nil
}

// Length resolves the register's byte length.
func (r *Register) Length(ctx context.Context) (int, error) {
	if r.length.IsZero() {
		return 4, nil
	}
	v, err := r.c.resolveInt(ctx, r.length)
	if err != nil {
		return 0, govis.WrapFeature(r.name, err)
	}
	if v < 1 {
		return 0, govis.WrapFeature(r.name, fmt.Errorf("register length %d < 1", v))
	}
	return int(v), nil
}

// ImposedAccessMode intersects the declared access mode with the locked
// state (SPEC_FULL.md §5.3): a locked register is forced read-only.
func (r *Register) ImposedAccessMode(ctx context.Context) (AccessMode, error) {
	locked, err := r.c.resolveLocked(ctx, r.locked)
	if err != nil {
		return AccessUndefined, govis.WrapFeature(r.name, err)
	}
	if locked && r.access != AccessNotAvailable {
		return AccessReadOnly, nil
	}
	return r.access, nil
}

type registerFetcher struct {
	r *Register
}

func (f registerFetcher) FetchRead(ctx context.Context, address uint64, length int) ([]byte, error) {
	return f.r.c.binding.Transport.ReadMemory(ctx, address, length)
}

func (f registerFetcher) FetchWrite(ctx context.Context, address uint64, data []byte) error {
	return f.r.c.binding.Transport.WriteMemory(ctx, address, data)
}

// ensureInvalidatorsRegistered wires this register's declared pInvalidator
// names to its own (address, length) in the shared cache, once those are
// resolvable -- addresses may themselves be computed from other nodes, so
// this can't happen at parse time and is done lazily on first access
// instead, per spec.md §4.3's dependency-invalidation rule.
func (r *Register) ensureInvalidatorsRegistered(ctx context.Context) error {
	if len(r.invalidatorNames) == 0 {
		return nil
	}
	r.invMu.Lock()
	defer r.invMu.Unlock()
	if r.invRegistered {
		return nil
	}
	addr, err := r.Address(ctx)
	if err != nil {
		return err
	}
	length, err := r.Length(ctx)
	if err != nil {
		return err
	}
	for _, name := range r.invalidatorNames {
		r.c.binding.Cache.RegisterInvalidator(name, addr, length)
	}
	r.invRegistered = true
	return nil
}

// raw reads this register's full byte range through the cache, per
// spec.md §4.3's policy table.
func (r *Register) raw(ctx context.Context) ([]byte, error) {
	if err := r.ensureInvalidatorsRegistered(ctx); err != nil {
		return nil, err
	}
	addr, err := r.Address(ctx)
	if err != nil {
		return nil, err
	}
	length, err := r.Length(ctx)
	if err != nil {
		return nil, err
	}
	data, err := r.c.binding.Cache.Read(ctx, registerFetcher{r}, addr, length, r.policy)
	if err != nil {
		return nil, govis.WrapFeature(r.name, err)
	}
	return data, nil
}

// writeRaw writes this register's full byte range through the cache.
func (r *Register) writeRaw(ctx context.Context, data []byte) error {
	if err := r.ensureInvalidatorsRegistered(ctx); err != nil {
		return err
	}
	if mode, err := r.ImposedAccessMode(ctx); err != nil {
		return err
	} else if r.c.binding.AccessCheckPolicy == AccessCheckEnable && !mode.writable() {
		return govis.WrapFeature(r.name, govis.ErrAccessDenied)
	}
	addr, err := r.Address(ctx)
	if err != nil {
		return err
	}
	if err := r.c.binding.Cache.Write(ctx, registerFetcher{r}, addr, data, r.policy, r.cachable); err != nil {
		return govis.WrapFeature(r.name, err)
	}
	r.invalidateDependents()
	return nil
}

func (r *Register) invalidateDependents() {
	r.c.binding.Cache.Invalidate(r.name)
}

// accumulate loads the register's bytes into a 64-bit accumulator with
// endianness swap, per spec.md §4.2's masked read pipeline.
func (r *Register) accumulate(ctx context.Context) (uint64, int, error) {
	data, err := r.raw(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(data) > 8 {
		return 0, 0, govis.WrapFeature(r.name, fmt.Errorf("register wider than 64 bits (%d bytes)", len(data)))
	}
	var acc uint64
	if r.endian == BigEndian {
		for _, b := range data {
			acc = acc<<8 | uint64(b)
		}
	} else {
		for i := len(data) - 1; i >= 0; i-- {
			acc = acc<<8 | uint64(data[i])
		}
	}
	return acc, len(data), nil
}

// GetInteger implements IntegerValue: masked read with sign extension, per
// spec.md §4.2 and §3's masked-integer invariant.
func (r *Register) GetInteger(ctx context.Context) (int64, error) {
	acc, byteLen, err := r.accumulate(ctx)
	if err != nil {
		return 0, err
	}
	lsb, msb := r.bitRange(byteLen)
	width := msb - lsb + 1
	masked := (acc >> uint(lsb)) & mask64(width)
	if r.sign == SignSigned {
		return signExtend(masked, width), nil
	}
	return int64(masked), nil
}

// SetInteger implements WritableInteger: range-checked, access-checked,
// read-modify-write within the cached buffer preserving bits outside the
// mask, per spec.md §4.2's write pipeline.
func (r *Register) SetInteger(ctx context.Context, v int64) error {
	byteLen, err := r.Length(ctx)
	if err != nil {
		return err
	}
	lsb, msb := r.bitRange(byteLen)
	width := msb - lsb + 1

	if err := r.checkRange(v, width); err != nil {
		return err
	}

	acc, _, err := r.accumulate(ctx)
	if err != nil {
		return err
	}
	cleared := acc &^ (mask64(width) << uint(lsb))
	newAcc := cleared | ((uint64(v) & mask64(width)) << uint(lsb))

	data := make([]byte, byteLen)
	if r.endian == BigEndian {
		for i := byteLen - 1; i >= 0; i-- {
			data[i] = byte(newAcc)
			newAcc >>= 8
		}
	} else {
		for i := 0; i < byteLen; i++ {
			data[i] = byte(newAcc)
			newAcc >>= 8
		}
	}
	return r.writeRaw(ctx, data)
}

func (r *Register) checkRange(v int64, width int) error {
	if r.c.binding.RangeCheckPolicy == RangeCheckDisable {
		return nil
	}
	var lo, hi int64
	if r.sign == SignSigned {
		lo, hi = -(int64(1) << uint(width-1)), int64(1)<<uint(width-1) - 1
	} else {
		lo, hi = 0, int64(mask64(width))
	}
	if v < lo || v > hi {
		if r.c.binding.RangeCheckPolicy == RangeCheckDebug {
			return nil
		}
		return govis.WrapFeature(r.name, govis.ErrOutOfRange)
	}
	return nil
}

func (r *Register) bitRange(byteLen int) (lsb, msb int) {
	if !r.hasBits {
		return 0, byteLen*8 - 1
	}
	return r.lsb, r.msb
}

func mask64(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func signExtend(v uint64, width int) int64 {
	signBit := uint64(1) << uint(width-1)
	if v&signBit != 0 {
		return int64(v | ^mask64(width))
	}
	return int64(v)
}
