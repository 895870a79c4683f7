package domain

// Versioned: снимок с версией для optimistic locking. WithVersion возвращает копию.
type Versioned[T any] interface {
	Entity
	EntityVersion() int64
	WithVersion(v int64) T
}

func (o Order) EntityVersion() int64 { return o.Version }

func (o Order) WithVersion(version int64) Order {
	o.Version = version
	return o
}

func (p Payment) EntityVersion() int64 { return p.Version }

func (p Payment) WithVersion(version int64) Payment {
	p.Version = version
	return p
}

func (d Delivery) EntityVersion() int64 { return d.Version }

func (d Delivery) WithVersion(version int64) Delivery {
	d.Version = version
	return d
}

func (i Inventory) EntityVersion() int64 { return i.Version }

func (i Inventory) WithVersion(version int64) Inventory {
	i.Version = version
	return i
}

func (r Report) EntityVersion() int64 { return r.Version }

func (r Report) WithVersion(version int64) Report {
	r.Version = version
	return r
}
