package materials

import "testing"

func TestSwordHarvestableIsPickaxeOrAxe(t *testing.T) {
	c := New()
	if !c.HarvestableBy(Wood, ToolSword) {
		t.Fatal("wood should be sword-harvestable via axe derivation")
	}
	if !c.HarvestableBy(Stone, ToolSword) {
		t.Fatal("stone should be sword-harvestable via pickaxe derivation")
	}
	if c.HarvestableBy(Bedrock, ToolSword) {
		t.Fatal("bedrock should not be harvestable at all")
	}
}

func TestUnknownMaterialDefaultsToAir(t *testing.T) {
	c := New()
	tr := c.Lookup(9999)
	if tr.Solid || tr.Shape != ShapeEmpty {
		t.Fatalf("unknown material should default to non-solid empty shape, got %+v", tr)
	}
}

func TestIsSolidAtShapes(t *testing.T) {
	c := newFrom([]Trait{
		{ID: 100, Shape: ShapeFull},
		{ID: 101, Shape: ShapeHalfLower},
		{ID: 102, Shape: ShapeSlopeUpRight},
	})
	if !c.IsSolidAt(100, 0.5, 0.1) {
		t.Fatal("full shape should be solid everywhere")
	}
	if c.IsSolidAt(101, 0.5, 0.1) {
		t.Fatal("half-lower should not be solid above midline")
	}
	if !c.IsSolidAt(101, 0.5, 0.9) {
		t.Fatal("half-lower should be solid below midline")
	}
	if !c.IsSolidAt(102, 1.0, 0.0) {
		t.Fatal("slope-up-right should be solid at its high corner")
	}
}

func TestHarvestDropOptional(t *testing.T) {
	c := New()
	if _, ok := c.HarvestDrop(Bedrock); ok {
		t.Fatal("bedrock should have no harvest drop")
	}
	d, ok := c.HarvestDrop(Stone)
	if !ok || d.MaterialID != Stone {
		t.Fatalf("stone should drop itself, got %+v ok=%v", d, ok)
	}
}
