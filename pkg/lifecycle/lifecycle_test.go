package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/pomreactor/pkg/model"
)

func TestInject_JarBindings(t *testing.T) {
	m := &model.Model{
		GroupID: "g", ArtifactID: "a", Version: "1",
		Build: &model.Build{Plugins: []model.Plugin{{
			ArtifactID: "maven-compiler-plugin",
			Version:    "3.8.1",
			Executions: []model.PluginExecution{{ID: "default-compile", Phase: "compile", Goals: []string{"compile"}}},
		}}},
	}
	var problems model.Problems

	out := NewDefaultInjector().Inject(context.Background(), m, &problems)

	if len(problems) != 0 {
		t.Errorf("Expected no problems, got %v", problems)
	}
	require.Len(t, m.Build.Plugins, 1, "input model must not be modified")

	byKey := make(map[string]model.Plugin)
	for _, p := range out.Build.Plugins {
		byKey[p.Key()] = p
	}
	compiler := byKey["org.apache.maven.plugins:maven-compiler-plugin"]
	assert.Equal(t, "3.8.1", compiler.Version, "declared version wins")
	require.Len(t, compiler.Executions, 2)
	assert.Equal(t, "default-testCompile", compiler.Executions[1].ID)

	jar := byKey["org.apache.maven.plugins:maven-jar-plugin"]
	assert.Equal(t, "3.4.1", jar.Version)
	assert.Equal(t, []model.PluginExecution{{ID: "default-jar", Phase: "package", Goals: []string{"jar"}}}, jar.Executions)
}

func TestInject_UnknownPackaging(t *testing.T) {
	m := &model.Model{GroupID: "g", ArtifactID: "a", Version: "1", Packaging: "bundle"}
	var problems model.Problems

	out := NewDefaultInjector().Inject(context.Background(), m, &problems)

	if out != m {
		t.Error("Expected the model to be returned unchanged")
	}
	require.Len(t, problems, 1)
	assert.Equal(t, model.SeverityWarning, problems[0].Severity)
	assert.Equal(t, "Unknown packaging: bundle", problems[0].Message)
}

func TestPhases(t *testing.T) {
	assert.Equal(t, []string{"install", "deploy"}, Phases("pom"))
	assert.Contains(t, Phases("jar"), "test")
	assert.Nil(t, Phases("unknown"))
}
