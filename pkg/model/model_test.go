package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePOM = `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>org.example</groupId>
    <artifactId>parent</artifactId>
    <version>1.0</version>
  </parent>
  <artifactId>child</artifactId>
  <packaging>war</packaging>
  <properties>
    <lib.version>2.3</lib.version>
    <encoding> UTF-8 </encoding>
  </properties>
  <dependencies>
    <dependency>
      <groupId>org.example</groupId>
      <artifactId>lib</artifactId>
      <version>${lib.version}</version>
      <classifier>tests</classifier>
      <optional>true</optional>
    </dependency>
  </dependencies>
  <build>
    <plugins>
      <plugin>
        <artifactId>maven-compiler-plugin</artifactId>
        <version>3.11.0</version>
      </plugin>
    </plugins>
  </build>
</project>`

func TestParseModel(t *testing.T) {
	m, err := ParseModel([]byte(samplePOM))
	require.NoError(t, err)

	assert.Equal(t, "org.example", m.EffectiveGroupID())
	assert.Equal(t, "1.0", m.EffectiveVersion())
	assert.Equal(t, "org.example:child:1.0", m.ID())
	assert.Equal(t, "war", m.PackagingOrDefault())
	assert.Equal(t, "2.3", m.Properties["lib.version"])
	assert.Equal(t, "UTF-8", m.Properties["encoding"])

	require.Len(t, m.Dependencies, 1)
	dep := m.Dependencies[0]
	assert.Equal(t, "org.example:lib:jar:tests", dep.ManagementKey())
	assert.True(t, dep.IsOptional())

	plugins := m.PluginsOrEmpty()
	require.Len(t, plugins, 1)
	assert.Equal(t, "org.apache.maven.plugins:maven-compiler-plugin", plugins[0].Key())

	assert.Equal(t, "../pom.xml", m.Parent.RelativePathOrDefault())
}

func TestParseModel_Malformed(t *testing.T) {
	_, err := ParseModel([]byte("<project><artifactId>x</project>"))
	if err == nil {
		t.Error("Expected error for malformed POM")
	}
}

func TestClone_IsDeep(t *testing.T) {
	m, err := ParseModel([]byte(samplePOM))
	require.NoError(t, err)

	c := m.Clone()
	c.Properties["lib.version"] = "9"
	c.Dependencies[0].Version = "9"
	c.Build.Plugins[0].Version = "9"

	assert.Equal(t, "2.3", m.Properties["lib.version"])
	assert.Equal(t, "${lib.version}", m.Dependencies[0].Version)
	assert.Equal(t, "3.11.0", m.Build.Plugins[0].Version)
}

func TestProblems(t *testing.T) {
	var ps Problems
	ps.Addf(SeverityWarning, VersionBase, "deprecated %s", "profiles.xml")
	if ps.HasErrors() {
		t.Error("Expected no errors with only a warning")
	}

	ps.Add(Problem{Message: "missing version", Severity: SeverityError, Version: Version20, Source: "pom.xml", Line: 12, Column: 5})
	if !ps.HasErrors() {
		t.Error("Expected errors after adding an ERROR problem")
	}
	if ps.HasFatal() {
		t.Error("Expected no fatal problems")
	}
	if got := ps.Count(SeverityError); got != 1 {
		t.Errorf("Expected 1 error, got %d", got)
	}
	assert.Equal(t, "[ERROR] missing version @ pom.xml, line 12, column 5", ps[1].String())
	assert.Equal(t, "[WARNING] deprecated profiles.xml", ps[0].String())
}
