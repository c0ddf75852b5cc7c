package device

import (
	"context"
	"testing"
)

func TestApplyAssignments(t *testing.T) {
	d, ft := openTestDevice(t)
	ctx := context.Background()

	err := d.ApplyAssignments(ctx, "Width=800 AcquisitionMode=SingleFrame R[0x1004]=0x3F800000 AcquisitionStart")
	if err != nil {
		t.Fatalf("ApplyAssignments: %v", err)
	}

	width, err := d.GetInteger(ctx, "Width")
	if err != nil || width != 800 {
		t.Fatalf("Width = %d, %v; want 800, nil", width, err)
	}

	mode, err := d.GetEnumSymbolic(ctx, "AcquisitionMode")
	if err != nil || mode != "SingleFrame" {
		t.Fatalf("AcquisitionMode = %q, %v; want SingleFrame, nil", mode, err)
	}

	gainReg, err := ft.ReadRegister(ctx, 0x1004)
	if err != nil || gainReg != 0x3F800000 {
		t.Fatalf("R[0x1004] = %#x, %v; want 0x3F800000, nil", gainReg, err)
	}

	started, err := ft.ReadRegister(ctx, 0x100C)
	if err != nil || started != 1 {
		t.Fatalf("AcquisitionStart register = %d, %v; want 1, nil", started, err)
	}
}

func TestApplyAssignmentsBadRegisterSyntax(t *testing.T) {
	d, _ := openTestDevice(t)
	if err := d.ApplyAssignments(context.Background(), "R[bogus=1"); err == nil {
		t.Fatal("expected error for malformed register token")
	}
}

func TestApplyAssignmentsContinuesPastFailureAndSurfacesFirstError(t *testing.T) {
	d, _ := openTestDevice(t)
	ctx := context.Background()

	err := d.ApplyAssignments(ctx, "Width=640 NoSuchFeature=1 AcquisitionMode=SingleFrame")
	if err == nil {
		t.Fatal("expected an error from the bad middle token")
	}

	width, werr := d.GetInteger(ctx, "Width")
	if werr != nil || width != 640 {
		t.Fatalf("Width = %d, %v; want 640 (earlier token should still apply)", width, werr)
	}
	mode, merr := d.GetEnumSymbolic(ctx, "AcquisitionMode")
	if merr != nil || mode != "SingleFrame" {
		t.Fatalf("AcquisitionMode = %q, %v; want SingleFrame (later token should still be attempted)", mode, merr)
	}
}

func TestApplyAssignmentsStripsQuotesFromValue(t *testing.T) {
	d, _ := openTestDevice(t)
	ctx := context.Background()

	if err := d.ApplyAssignments(ctx, `AcquisitionMode='SingleFrame'`); err != nil {
		t.Fatalf("ApplyAssignments: %v", err)
	}
	mode, err := d.GetEnumSymbolic(ctx, "AcquisitionMode")
	if err != nil || mode != "SingleFrame" {
		t.Fatalf("AcquisitionMode = %q, %v; want SingleFrame", mode, err)
	}
}
