package enas

import (
	"math"
	"testing"
)

func TestLatencyModel(t *testing.T) {
	if l := Latency(32); l != 3.0 {
		t.Errorf("latency at 32 bits: %v", l)
	}
	expect := 3 * (0.25 + 0.75*(1.0/32))
	if l := Latency(1); math.Abs(l-expect) > 1e-12 {
		t.Errorf("latency at 1 bit: %v expect %v", l, expect)
	}
	if Latency(1) >= Latency(32) {
		t.Error("binary blocks should be cheaper than full precision")
	}
}

func TestVariantTable(t *testing.T) {
	cases := []struct {
		depth  int
		kind   BlockKind
		blocks int
	}{
		{18, BasicBlock, 8},
		{34, BasicBlock, 16},
		{50, Bottleneck, 16},
		{101, Bottleneck, 33},
		{152, Bottleneck, 50},
	}
	for _, tc := range cases {
		for version := 1; version <= 2; version++ {
			kind, layers, channels, err := GetVariant(version, tc.depth)
			if err != nil {
				t.Fatal(err)
			}
			if kind != tc.kind {
				t.Errorf("resnet%d: kind %v expect %v", tc.depth, kind, tc.kind)
			}
			if len(layers) != len(channels)-1 {
				t.Errorf("resnet%d: %d stages for %d channel counts", tc.depth, len(layers), len(channels))
			}
			total := 0
			for _, n := range layers {
				total += n
			}
			if total != tc.blocks {
				t.Errorf("resnet%d: %d blocks expect %d", tc.depth, total, tc.blocks)
			}
		}
	}
}

func TestInvalidVariant(t *testing.T) {
	if _, err := GetResNet(3, 18, Options{}); !IsInvalidConfiguration(err) {
		t.Errorf("version 3: %v", err)
	}
	if _, err := GetResNet(1, 20, Options{}); !IsInvalidConfiguration(err) {
		t.Errorf("depth 20: %v", err)
	}
	if _, err := GetResNet(1, 18, Options{Stem: "cifar"}); !IsInvalidConfiguration(err) {
		t.Errorf("bad stem: %v", err)
	}
	if _, err := GetResNet(1, 18, Options{Pretrained: true}); !IsUnsupported(err) {
		t.Errorf("pretrained: %v", err)
	}
}

func TestBlockSpecValidate(t *testing.T) {
	spec := BlockSpec{Kind: BasicBlock, Version: 1, Channels: 8, InChannels: 8, Stride: 1, Bits: 1}
	if err := spec.validate(); err != nil {
		t.Error(err)
	}
	bad := spec
	bad.Version = 3
	if err := bad.validate(); !IsInvalidConfiguration(err) {
		t.Errorf("version: %v", err)
	}
	// channel change without a downsample shortcut is inconsistent
	bad = spec
	bad.InChannels = 4
	if err := bad.validate(); !IsInvalidConfiguration(err) {
		t.Errorf("channels: %v", err)
	}
	bad = spec
	bad.Stride = 2
	if err := bad.validate(); !IsInvalidConfiguration(err) {
		t.Errorf("stride: %v", err)
	}
	bad.Downsample = true
	if err := bad.validate(); err != nil {
		t.Errorf("downsample: %v", err)
	}
	// zero input channels defers the depth to Init
	deferred := spec
	deferred.InChannels = 0
	if err := deferred.validate(); err != nil {
		t.Errorf("deferred in channels: %v", err)
	}
	bad = spec
	bad.InChannels = -1
	if err := bad.validate(); !IsInvalidConfiguration(err) {
		t.Errorf("negative in channels: %v", err)
	}
}
