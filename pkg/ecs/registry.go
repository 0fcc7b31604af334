package ecs

// Registry is the sparse-component store. All methods are single-threaded
// (spec.md §5); there is no internal locking.
type Registry struct {
	nextID EntityID
	alive  map[EntityID]struct{}

	transforms  map[EntityID]Transform
	velocities  map[EntityID]Velocity
	colliders   map[EntityID]Collider
	factions    map[EntityID]Faction
	healths     map[EntityID]Health
	lifetimes   map[EntityID]Lifetime
	projectiles map[EntityID]Projectile
	hostiles    map[EntityID]HostileTarget
	drops       map[EntityID]WorldDrop

	// insertion order of currently alive entities, oldest first; used to
	// give pickup-probe resolution and other scans a fixed, reproducible
	// iteration order instead of Go's randomized map iteration.
	order []EntityID
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		alive:       make(map[EntityID]struct{}),
		transforms:  make(map[EntityID]Transform),
		velocities:  make(map[EntityID]Velocity),
		colliders:   make(map[EntityID]Collider),
		factions:    make(map[EntityID]Faction),
		healths:     make(map[EntityID]Health),
		lifetimes:   make(map[EntityID]Lifetime),
		projectiles: make(map[EntityID]Projectile),
		hostiles:    make(map[EntityID]HostileTarget),
		drops:       make(map[EntityID]WorldDrop),
	}
}

// Spawn allocates a new entity handle and marks it alive. Components are
// attached separately via the Set* methods.
func (r *Registry) Spawn() EntityID {
	r.nextID++
	id := r.nextID
	r.alive[id] = struct{}{}
	r.order = append(r.order, id)
	return id
}

// Destroy removes an entity and every component attached to it.
func (r *Registry) Destroy(id EntityID) {
	if _, ok := r.alive[id]; !ok {
		return
	}
	delete(r.alive, id)
	delete(r.transforms, id)
	delete(r.velocities, id)
	delete(r.colliders, id)
	delete(r.factions, id)
	delete(r.healths, id)
	delete(r.lifetimes, id)
	delete(r.projectiles, id)
	delete(r.hostiles, id)
	delete(r.drops, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Alive reports whether id is currently live.
func (r *Registry) Alive(id EntityID) bool {
	_, ok := r.alive[id]
	return ok
}

func (r *Registry) SetTransform(id EntityID, c Transform)   { r.transforms[id] = c }
func (r *Registry) SetVelocity(id EntityID, c Velocity)     { r.velocities[id] = c }
func (r *Registry) SetCollider(id EntityID, c Collider)     { r.colliders[id] = c }
func (r *Registry) SetFaction(id EntityID, c Faction)       { r.factions[id] = c }
func (r *Registry) SetHealth(id EntityID, c Health)         { r.healths[id] = c }
func (r *Registry) SetLifetime(id EntityID, c Lifetime)     { r.lifetimes[id] = c }
func (r *Registry) SetProjectile(id EntityID, c Projectile) { r.projectiles[id] = c }
func (r *Registry) SetHostileTarget(id EntityID, c HostileTarget) { r.hostiles[id] = c }
func (r *Registry) SetWorldDrop(id EntityID, c WorldDrop)   { r.drops[id] = c }

func (r *Registry) Transform(id EntityID) (Transform, bool)   { v, ok := r.transforms[id]; return v, ok }
func (r *Registry) Velocity(id EntityID) (Velocity, bool)     { v, ok := r.velocities[id]; return v, ok }
func (r *Registry) Collider(id EntityID) (Collider, bool)     { v, ok := r.colliders[id]; return v, ok }
func (r *Registry) Faction(id EntityID) (Faction, bool)       { v, ok := r.factions[id]; return v, ok }
func (r *Registry) Health(id EntityID) (Health, bool)         { v, ok := r.healths[id]; return v, ok }
func (r *Registry) Lifetime(id EntityID) (Lifetime, bool)     { v, ok := r.lifetimes[id]; return v, ok }
func (r *Registry) Projectile(id EntityID) (Projectile, bool) { v, ok := r.projectiles[id]; return v, ok }
func (r *Registry) HostileTarget(id EntityID) (HostileTarget, bool) {
	v, ok := r.hostiles[id]
	return v, ok
}
func (r *Registry) WorldDrop(id EntityID) (WorldDrop, bool) { v, ok := r.drops[id]; return v, ok }

// Order returns currently alive entities in stable insertion order.
func (r *Registry) Order() []EntityID {
	out := make([]EntityID, len(r.order))
	copy(out, r.order)
	return out
}

// Projectiles returns all alive entities with a Projectile component, in
// insertion order.
func (r *Registry) Projectiles() []EntityID {
	var out []EntityID
	for _, id := range r.order {
		if _, ok := r.projectiles[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Hostiles returns all alive entities with a HostileTarget component, in
// insertion order.
func (r *Registry) Hostiles() []EntityID {
	var out []EntityID
	for _, id := range r.order {
		if _, ok := r.hostiles[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Drops returns all alive entities with a WorldDrop component, in
// insertion order (oldest spawn first).
func (r *Registry) Drops() []EntityID {
	var out []EntityID
	for _, id := range r.order {
		if _, ok := r.drops[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// WithLifetime returns all alive entities with a Lifetime component.
func (r *Registry) WithLifetime() []EntityID {
	var out []EntityID
	for _, id := range r.order {
		if _, ok := r.lifetimes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Moveable returns all alive entities with both Transform and Velocity.
func (r *Registry) Moveable() []EntityID {
	var out []EntityID
	for _, id := range r.order {
		_, hasT := r.transforms[id]
		_, hasV := r.velocities[id]
		if hasT && hasV {
			out = append(out, id)
		}
	}
	return out
}
