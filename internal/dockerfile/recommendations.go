package dockerfile

import "strings"

const (
	combineUpdateRecommendationConstant = "Combine 'apt-get update' with 'apt-get install' in the same RUN instruction"
	cleanCacheRecommendationConstant    = "Clean up apt cache using 'rm -rf /var/lib/apt/lists'"
	noRecommendsRecommendationConstant  = "Use '--no-install-recommends' flag with apt-get install to minimize image size"
	aptListsCleanupMarkerConstant       = "rm -rf /var/lib/apt/lists"
	noInstallRecommendsFlagConstant     = "--no-install-recommends"
)

// Recommend checks apt usage against common image-size and cache-freshness practices.
// Dockerfiles without any apt install get no recommendations.
func Recommend(content string) []string {
	installInstructions := make([]string, 0)
	for _, instruction := range logicalInstructions(content) {
		if runDirectivePattern.MatchString(instruction.text) && installCommandPattern.MatchString(instruction.text) {
			installInstructions = append(installInstructions, instruction.text)
		}
	}
	if len(installInstructions) == 0 {
		return []string{}
	}

	recommendations := make([]string, 0, 3)
	updatedWithInstall := false
	everyInstallSkipsRecommends := true
	for _, instruction := range installInstructions {
		if updateLocation := updateCommandPattern.FindStringIndex(instruction); updateLocation != nil {
			if installLocation := installCommandPattern.FindStringIndex(instruction); installLocation[0] > updateLocation[0] {
				updatedWithInstall = true
			}
		}
		if !strings.Contains(instruction, noInstallRecommendsFlagConstant) {
			everyInstallSkipsRecommends = false
		}
	}

	if !updatedWithInstall {
		recommendations = append(recommendations, combineUpdateRecommendationConstant)
	}
	if !strings.Contains(content, aptListsCleanupMarkerConstant) {
		recommendations = append(recommendations, cleanCacheRecommendationConstant)
	}
	if !everyInstallSkipsRecommends {
		recommendations = append(recommendations, noRecommendsRecommendationConstant)
	}
	return recommendations
}
