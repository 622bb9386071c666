// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_InstallsProvidersAndShutsDownCleanly(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, "filterscore-test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer.Start(ctx, "test-span")
	span.End()

	assert.NoError(t, shutdown(ctx))
}
