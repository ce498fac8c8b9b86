package runtime

import (
	"fmt"
	"reflect"

	"github.com/loomkit/loom/internal/cell"
	"github.com/loomkit/loom/internal/decl"
)

// Mutualism keeps paired state fields on two different context
// instances synchronized and couples their lifecycles.
//
// Fulfillment runs on a host's contextualization: each declared
// mutualist is located or constructed, linked in both directions, and
// each declared field pair is resolved to one shared cell so a write
// through either side notifies both (host, field) and (mutualist,
// field) registrations. A newly produced mutualist goes through the
// full contextualization pipeline itself.
//
// Severing is asymmetric, and the asymmetry is load-bearing:
//   - removing a host releases its mutualists; a mutualist whose last
//     host disappears is decontextualized too (last host wins removal)
//   - removing a mutualist directly decontextualizes EVERY host
//     referencing it (any removal is total): a host cannot outlive a
//     mutualist it already received during construction

// fulfillMutualism links ctx (the host, already bucketed with id) to
// each of its declared mutualists.
func (rt *Runtime) fulfillMutualism(host any, hostID uint64, spec *decl.ContextSpec) error {
	m := spec.Mutualism
	links := make(map[string]any, len(m.Mutualists))

	for i := range m.Mutualists {
		mu := &m.Mutualists[i]
		mutSpec := rt.reg.Context(mu.Type)
		if mutSpec == nil {
			return notAContextTypeError("fulfill mutualism", mu.Type)
		}

		var mut any
		if mu.Locate {
			if b := rt.buckets[mu.Type]; b != nil {
				mut = b.first()
			}
		}
		if mut == nil {
			mut = mu.Construct(host)
			if mut == nil {
				return fmt.Errorf("mutualism %s.%s: constructor returned nil", spec.Type, mu.Name)
			}
			if reflect.TypeOf(mut) != mu.Type {
				return fmt.Errorf("mutualism %s.%s: constructor returned %T, declared %s", spec.Type, mu.Name, mut, mu.Type)
			}
		}

		// Share one cell per declared field pair. For a freshly
		// produced mutualist the host's cell is authoritative: the
		// mutualist's field is rewired onto it before the mutualist
		// binds. A mutualist that is already a member has bound its
		// own cells, so those stay authoritative and the host's field
		// is rewired onto them instead. Every later host of a shared
		// mutualist therefore lands on the same cell, keeping all
		// existing registrations live.
		existing := rt.member(mut)
		for _, fp := range mu.Fields {
			mf := mutSpec.Field(fp.MutualistField)
			if mf == nil {
				return fmt.Errorf("mutualism %s.%s: mutualist type %s has no field %s", spec.Type, mu.Name, mu.Type, fp.MutualistField)
			}
			hf := spec.Field(fp.HostField)
			if existing {
				c := mf.Get(mut)
				if c == nil {
					c = cell.New(nil)
					mf.Set(mut, c)
				}
				hf.Set(host, c)
				continue
			}
			c := hf.Get(host)
			if c == nil {
				c = cell.New(nil)
				hf.Set(host, c)
			}
			mf.Set(mut, c)
		}

		links[mu.Name] = mut
		mid := rt.idFor(mut)
		hs := rt.hostsOf[mid]
		if hs == nil {
			hs = newContextSet()
			rt.hostsOf[mid] = hs
		}
		hs.add(host)

		if !rt.member(mut) {
			if err := rt.Contextualize(mut); err != nil {
				return fmt.Errorf("contextualize mutualist %s.%s: %w", spec.Type, mu.Name, err)
			}
		}
		rt.log.Debug("mutualism linked",
			"host", spec.Type.String(), "hostId", hostID,
			"mutualist", mu.Type.String(), "name", mu.Name,
		)
	}

	rt.hostLinks[hostID] = links
	return nil
}

// breakMutualism severs ctx's relationships on removal, cascading per
// the asymmetric contract above. Called with ctx already out of its
// bucket, so re-entrant removals terminate.
func (rt *Runtime) breakMutualism(ctx any, id uint64) {
	// Host side: release each mutualist; last host wins removal.
	if links := rt.hostLinks[id]; links != nil {
		delete(rt.hostLinks, id)
		m := rt.reg.MutualismDescriptor(reflect.TypeOf(ctx))
		if m != nil {
			for i := range m.Mutualists {
				mu := &m.Mutualists[i]
				mut, ok := links[mu.Name]
				if !ok {
					continue
				}
				mid, ok := rt.ids[mut]
				if !ok {
					continue
				}
				hs := rt.hostsOf[mid]
				if hs == nil {
					continue
				}
				hs.remove(ctx)
				if hs.size() == 0 {
					delete(rt.hostsOf, mid)
					rt.remove(mut)
				}
			}
		}
	}

	// Mutualist side: any removal is total, every host goes.
	if hs := rt.hostsOf[id]; hs != nil {
		delete(rt.hostsOf, id)
		for _, host := range hs.snapshot() {
			rt.remove(host)
		}
	}
}
