package main

import "fmt"

type subnetSeed struct {
	suffix string
	sst    int
	sd     string
	// prbDl and prbUl are zero when the profile carries no PRB quota.
	prbDl, prbUl int
}

var seeds = []subnetSeed{
	{suffix: "fa", sst: 1, sd: "000001"},
	{suffix: "fb", sst: 1, sd: "000002", prbDl: 1024, prbUl: 3096},
	{suffix: "fc", sst: 2, sd: "000003"},
	{suffix: "fd", sst: 2, sd: "000004", prbDl: 256, prbUl: 512},
	{suffix: "fe", sst: 3, sd: "000005"},
	{suffix: "ff", sst: 1, sd: "000006", prbDl: 2048, prbUl: 4096},
}

var managedFunctions = []string{
	"2c000978-15e3-4393-984e-a20d32c96004-AUPF_200000",
	"2c000978-15e3-4393-984e-a20d32c96004-DU_200000",
	"2c000978-15e3-4393-984e-a20d32c96004-ACPF_200000",
}

// seedSubnets builds the six NetworkSliceSubnet documents served at start.
func seedSubnets() map[string]map[string]any {
	subnets := make(map[string]map[string]any, len(seeds))
	for i, seed := range seeds {
		id := "9090d36f-6af5-4cfd-8bda-7a3c88fa82" + seed.suffix
		profile := map[string]any{
			"coverageAreaTAList":   []any{1, 2},
			"resourceSharingLevel": "shared",
		}
		if seed.prbDl > 0 {
			profile["RRU.PrbDl"] = seed.prbDl
			profile["RRU.PrbUl"] = seed.prbUl
		}
		subnets[id] = map[string]any{
			"id": id,
			"attributes": map[string]any{
				"operationalState":       "enabled",
				"administrativeState":    "UNLOCKED",
				"networkSliceSubnetType": "RAN_SLICESUBNET",
				"managedFunctionRef":     managedFunctions,
				"networkSliceSubnetRef":  []string{},
				"sliceProfileList": []any{map[string]any{
					"sliceProfileId": fmt.Sprintf("2f1ca17d-5c44-4355-bfed-e9800a2996c%d", i+1),
					"extensions":     map[string]any{"state": "IN_SERVICE"},
					"pLMNInfoList": []any{map[string]any{
						"PLMNId": map[string]any{"mcc": "330", "mnc": "220"},
						"SNSSAI": map[string]any{"sst": seed.sst, "sd": seed.sd},
					}},
					"RANSliceSubnetProfile": profile,
				}},
			},
		}
	}
	return subnets
}
